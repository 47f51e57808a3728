package remote

import (
	"github.com/ahrav/go-proctor/internal/answerkey"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/schedule"
	"github.com/ahrav/go-proctor/internal/scoreband"
	"github.com/ahrav/go-proctor/internal/section"
)

var (
	_ schedule.Store           = (*Client)(nil)
	_ section.Store            = (*Client)(nil)
	_ section.Lookup           = (*Client)(nil)
	_ scoreband.Store          = (*Client)(nil)
	_ answerkey.Store          = (*Client)(nil)
	_ registration.Store       = (*Client)(nil)
	_ registration.Enrollments = (*Client)(nil)
	_ catalog.Source           = (*Client)(nil)
)
