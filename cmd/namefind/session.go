package main

import (
	"context"
	"fmt"

	"github.com/jackzampolin/namefind/internal/api"
	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/document"
	"github.com/jackzampolin/namefind/internal/reconcile"
	"github.com/jackzampolin/namefind/internal/svcctx"
)

// session is an open document file with a running view.
type session struct {
	path string
	svc  *svcctx.Services
	doc  *document.Document
	view *reconcile.View
}

// openSession loads the document at path and starts a view over it.
// The view stops when ctx is cancelled.
func openSession(ctx context.Context, path string) (*session, error) {
	svc, err := requireServices(ctx)
	if err != nil {
		return nil, err
	}
	settings := svc.Config.Detection()

	f, err := document.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromFile(f, typeNames(settings), document.WithLogger(svc.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	s := &session{path: path, svc: svc, doc: doc}
	if err := s.segment(settings); err != nil {
		return nil, err
	}

	view, err := reconcile.NewView(reconcile.ViewConfig{
		Name:     path,
		Document: doc,
		Pool:     svc.Pool,
		Settings: svc.Config.Detection,
		ResolveModelPath: func(p string) string {
			return svc.Home.ResolveModelPath(config.ResolveEnvVars(p))
		},
		Logger: svc.Logger,
	})
	if err != nil {
		return nil, err
	}
	go func() {
		if err := view.Run(ctx); err != nil {
			svc.Logger.Error("view stopped", "error", err)
		}
	}()
	s.view = view
	return s, nil
}

func (s *session) segment(settings config.DetectionCfg) error {
	added, err := s.doc.EnsureSegmentation(settings.SentenceType, settings.TokenType)
	if err != nil {
		return fmt.Errorf("failed to segment %s: %w", s.path, err)
	}
	if added {
		s.svc.Logger.Debug("derived sentences and tokens", "document", s.path)
	}
	return nil
}

// reload re-reads the file and applies the difference to the open document.
func (s *session) reload(ctx context.Context) error {
	f, err := document.ReadFile(ctx, s.path)
	if err != nil {
		return err
	}
	ch, err := s.doc.Sync(f)
	if err != nil {
		return fmt.Errorf("failed to sync %s: %w", s.path, err)
	}
	s.svc.Logger.Debug("document reloaded",
		"added", len(ch.Added),
		"removed", len(ch.Removed),
		"text_changed", ch.TextChanged)
	return s.segment(s.svc.Config.Detection())
}

func (s *session) save() error {
	return document.WriteFile(s.path, s.doc.File())
}

func (s *session) report(ctx context.Context) (api.EntityReport, error) {
	candidates, err := s.view.Elements(ctx)
	if err != nil {
		return api.EntityReport{}, err
	}
	confirmed, err := s.view.Confirmed(ctx)
	if err != nil {
		return api.EntityReport{}, err
	}
	return api.EntityReport{
		Document:   s.path,
		Status:     s.view.Status().Message,
		Candidates: candidates,
		Confirmed:  confirmed,
	}, nil
}
