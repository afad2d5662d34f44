// Package session keeps per-browser dashboard state: the current survey
// table, thresholds and the artifacts produced for that browser.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

// ErrNotFound is returned by Load for unknown or expired tokens.
var ErrNotFound = errors.New("session not found")

// State is everything the dashboard remembers for one browser. Artifact
// fields hold base names inside the session directory.
type State struct {
	Token      string             `json:"token"`
	TableCSV   string             `json:"table_csv"`
	Thresholds metrics.Thresholds `json:"thresholds"`

	ProcessedImage      string `json:"processed_image,omitempty"`
	ProcessedModel      string `json:"processed_model,omitempty"`
	ProcessedMetadata   string `json:"processed_metadata,omitempty"`
	ProcessedProvenance string `json:"processed_provenance,omitempty"`
	UploadedImage       string `json:"uploaded_image,omitempty"`

	ReportImage    string                    `json:"report_image,omitempty"`
	ReportMetadata string                    `json:"report_metadata,omitempty"`
	Narrative      *narrative.Interpretation `json:"narrative,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewToken returns a fresh random session token.
func NewToken() string { return uuid.NewString() }

// ValidToken reports whether s looks like a token we issued.
func ValidToken(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// Fresh is the state of a browser that has not uploaded anything yet.
func Fresh(token string, th metrics.Thresholds) (*State, error) {
	s := &State{Token: token, Thresholds: th, UpdatedAt: time.Now().UTC()}
	if err := s.SetTable(survey.Demo()); err != nil {
		return nil, err
	}
	return s, nil
}

// Table parses the stored canonical CSV.
func (s *State) Table() (*survey.Table, error) {
	if strings.TrimSpace(s.TableCSV) == "" {
		return survey.NewTable(0), nil
	}
	return survey.NormalizeReader("session.csv", strings.NewReader(s.TableCSV))
}

// SetTable replaces the stored table.
func (s *State) SetTable(t *survey.Table) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	s.TableCSV = buf.String()
	return nil
}

// Dir is the artifact directory of this session under root.
func (s *State) Dir(root string) string { return filepath.Join(root, s.Token) }

// Artifacts lists the non-empty artifact base names.
func (s *State) Artifacts() []string {
	var out []string
	for _, n := range []string{s.ProcessedImage, s.ProcessedModel, s.ProcessedMetadata, s.UploadedImage, s.ReportImage, s.ReportMetadata} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Store persists State by token.
type Store interface {
	Load(ctx context.Context, token string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, token string) error
	Close() error
}

// Open selects a backend from configuration.
func Open(c config.Session) (Store, error) {
	ttl := time.Duration(c.TTLHours) * time.Hour
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", "sqlite":
		st, err := OpenSQLite(c.SQLitePath, ttl)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "redis":
		st, err := OpenRedis(c.RedisAddr, c.RedisDB, ttl)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", c.Backend)
	}
}
