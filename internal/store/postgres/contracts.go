package postgres

import (
	"github.com/ahrav/go-proctor/internal/answerkey"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/schedule"
	"github.com/ahrav/go-proctor/internal/scoreband"
	"github.com/ahrav/go-proctor/internal/section"
)

var (
	_ schedule.Store           = (*Store)(nil)
	_ section.Store            = (*Store)(nil)
	_ section.Lookup           = (*Store)(nil)
	_ scoreband.Store          = (*Store)(nil)
	_ answerkey.Store          = (*Store)(nil)
	_ registration.Store       = (*Store)(nil)
	_ registration.Enrollments = (*Store)(nil)
	_ catalog.Source           = (*Store)(nil)
)
