// Package resultstore writes agent envelopes and derived artifacts under
// deterministic keys and reads them back in one normalized shape.
package resultstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
	"claimflow/internal/port"
)

const jsonContentType = "application/json"

// Store reads and writes through one tenant's object storage.
type Store struct {
	storage port.ObjectStorage
	scheme  KeyScheme
}

// New creates a Store. A nil scheme selects the numbered scheme.
func New(storage port.ObjectStorage, scheme KeyScheme) *Store {
	if scheme == nil {
		scheme = NumberedScheme{}
	}
	return &Store{storage: storage, scheme: scheme}
}

// Key computes the key of a JSON artifact of stageName at the context's stage
// number. The same inputs always yield the same key.
func (s *Store) Key(pc domain.PipelineContext, stageName, artifactName string) domain.StorageKey {
	return s.scheme.Key(s.parts(pc, stageName, domain.FolderTaskDocs, SanitizeName(artifactName)+".json"))
}

// DocumentKey computes the key of an uploaded or processed document.
func (s *Store) DocumentKey(pc domain.PipelineContext, role domain.FolderRole, filename string) domain.StorageKey {
	return s.scheme.Key(s.parts(pc, pc.StageName, role, SanitizeName(filename)))
}

func (s *Store) parts(pc domain.PipelineContext, stageName string, role domain.FolderRole, file string) KeyParts {
	return KeyParts{
		TenantID:    pc.TenantID,
		WorkflowKey: pc.WorkflowKey,
		TicketID:    pc.TicketID,
		StageNumber: pc.StageNumber,
		StageName:   stageName,
		FolderRole:  role,
		File:        file,
	}
}

// Store serializes payload as JSON under the artifact key and returns the key.
func (s *Store) Store(ctx context.Context, pc domain.PipelineContext, stageName, artifactName string, payload any) (domain.StorageKey, error) {
	key := s.Key(pc, stageName, artifactName)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("resultstore.Store: marshaling %s: %w", key, err)
	}
	if _, err := s.storage.Put(ctx, key.String(), body, jsonContentType); err != nil {
		return "", &domain.StorageError{Op: "put", Key: key.String(), Err: err}
	}
	zap.L().Debug("resultstore.Store: stored", zap.String("key", key.String()), zap.Int("bytes", len(body)))
	return key, nil
}

// StoreDocument writes raw document bytes under the given folder role.
func (s *Store) StoreDocument(ctx context.Context, pc domain.PipelineContext, role domain.FolderRole, filename string, body []byte, contentType string) (domain.StorageKey, error) {
	key := s.DocumentKey(pc, role, filename)
	if _, err := s.storage.Put(ctx, key.String(), body, contentType); err != nil {
		return "", &domain.StorageError{Op: "put", Key: key.String(), Err: err}
	}
	return key, nil
}

// Raw returns the stored bytes of key.
func (s *Store) Raw(ctx context.Context, key domain.StorageKey) ([]byte, error) {
	body, err := s.storage.Get(ctx, key.String())
	if err != nil {
		return nil, &domain.StorageError{Op: "get", Key: key.String(), Err: err}
	}
	return body, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key domain.StorageKey) (bool, error) {
	ok, err := s.storage.Exists(ctx, key.String())
	if err != nil {
		return false, &domain.StorageError{Op: "exists", Key: key.String(), Err: err}
	}
	return ok, nil
}

// Retrieve reads key and normalizes it. Envelopes written with rawResponse and
// with apiResponse both come back as APIResponse; any other content becomes
// APIResponse verbatim.
func (s *Store) Retrieve(ctx context.Context, key domain.StorageKey) (*domain.Retrieved, error) {
	body, err := s.Raw(ctx, key)
	if err != nil {
		return nil, err
	}
	return Normalize(key, body), nil
}

// RetrieveArtifact recomputes the artifact key and reads it.
func (s *Store) RetrieveArtifact(ctx context.Context, pc domain.PipelineContext, stageName, artifactName string) (*domain.Retrieved, error) {
	return s.Retrieve(ctx, s.Key(pc, stageName, artifactName))
}

// Normalize converts stored bytes into the single read shape.
func Normalize(key domain.StorageKey, body []byte) *domain.Retrieved {
	out := &domain.Retrieved{Key: key}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		out.APIResponse = string(body)
		return out
	}

	var (
		response any
		found    bool
	)
	for _, field := range []string{"rawResponse", "apiResponse"} {
		if v, ok := doc[field]; ok {
			response, found = v, true
			break
		}
	}
	if !found {
		out.APIResponse = string(body)
		return out
	}

	out.APIResponse = jsonpath.Stringify(response)
	out.StatusCode = statusCode(doc["statusCode"])
	out.Fields = make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case "rawResponse", "apiResponse", "statusCode":
			continue
		}
		out.Fields[k] = normalizeNumbers(v)
	}
	return out
}

func statusCode(v any) int {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case float64:
		return int(t)
	default:
		return 0
	}
}

// normalizeNumbers converts json.Number leaves back to float64 so callers see
// the same types as encoding/json produces by default.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
		return t
	default:
		return v
	}
}

// IsNotFound reports whether err is a storage read of a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
