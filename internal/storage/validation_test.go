package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/katalog/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "bednění", wantErr: false},
		{name: "empty string", str: "", wantErr: true},
		{name: "whitespace only", str: " \t\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEmptyString) {
				t.Errorf("validateString() error = %v, want ErrEmptyString", err)
			}
		})
	}
}

func TestValidateMapping(t *testing.T) {
	valid := func() *model.LearnedMapping {
		return &model.LearnedMapping{
			ID:             "01A",
			NormalizedText: "bednění základů",
			ContextHash:    "global",
			Code:           "801171321",
			Confidence:     0.5,
		}
	}

	tests := []struct {
		mutate  func(*model.LearnedMapping)
		wantErr error
		name    string
	}{
		{name: "valid", mutate: func(*model.LearnedMapping) {}},
		{name: "missing context hash", mutate: func(m *model.LearnedMapping) { m.ContextHash = "" }, wantErr: ErrInvalidMapping},
		{name: "negative confidence", mutate: func(m *model.LearnedMapping) { m.Confidence = -0.1 }, wantErr: ErrInvalidMapping},
		{name: "negative usage", mutate: func(m *model.LearnedMapping) { m.UsageCount = -1 }, wantErr: ErrInvalidMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := validateMapping(m)
			if tt.wantErr == nil && err != nil {
				t.Errorf("validateMapping() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("validateMapping() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := validateMapping(nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("validateMapping(nil) error = %v, want ErrNilParameter", err)
	}
}

func TestValidateRelatedItem(t *testing.T) {
	item := &model.RelatedItem{ParentMappingID: "01A", Code: "274361821", RelationshipType: model.RelationshipManual}
	if err := validateRelatedItem(item); err != nil {
		t.Errorf("validateRelatedItem() error = %v", err)
	}

	item.ParentMappingID = ""
	if err := validateRelatedItem(item); !errors.Is(err, ErrInvalidRelatedItem) {
		t.Errorf("validateRelatedItem() error = %v, want ErrInvalidRelatedItem", err)
	}
}
