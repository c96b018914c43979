package resultstore

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"claimflow/internal/domain"
)

const defaultArtifactName = "consolidated"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// SanitizeName replaces every character outside [A-Za-z0-9.-] with "_". An
// empty name becomes "consolidated".
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultArtifactName
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// KeyParts are the inputs of a storage key. File is already sanitized and
// carries its extension.
type KeyParts struct {
	TenantID    string
	WorkflowKey string
	TicketID    string
	StageNumber int
	StageName   string
	FolderRole  domain.FolderRole
	File        string
}

// KeyScheme turns KeyParts into a storage key. Implementations are pure.
type KeyScheme interface {
	Name() string
	Key(p KeyParts) domain.StorageKey
}

// SimpleScheme lays keys out as
// {tenantId}/{workflowKey}/{ticketId}/{stageName}/{file}.
type SimpleScheme struct{}

func (SimpleScheme) Name() string { return "simple" }

func (SimpleScheme) Key(p KeyParts) domain.StorageKey {
	return domain.StorageKey(path.Join(p.TenantID, p.WorkflowKey, p.TicketID, p.StageName, p.File))
}

// NumberedScheme lays keys out as
// {rootFolder}/{tenantId}/{workflowKey}/{ticketId}/{stage#}_{stageName}/{folderRole}/{file}.
type NumberedScheme struct {
	RootFolder string
}

func (NumberedScheme) Name() string { return "numbered" }

func (s NumberedScheme) Key(p KeyParts) domain.StorageKey {
	role := p.FolderRole
	if role == "" {
		role = domain.FolderTaskDocs
	}
	parts := make([]string, 0, 7)
	if root := strings.Trim(s.RootFolder, "/"); root != "" {
		parts = append(parts, root)
	}
	parts = append(parts,
		p.TenantID,
		p.WorkflowKey,
		p.TicketID,
		fmt.Sprintf("%d_%s", p.StageNumber, p.StageName),
		string(role),
		p.File,
	)
	return domain.StorageKey(strings.Join(parts, "/"))
}

// SchemeByName returns the named scheme; "" selects numbered.
func SchemeByName(name, rootFolder string) (KeyScheme, error) {
	switch strings.ToLower(name) {
	case "", "numbered":
		return NumberedScheme{RootFolder: rootFolder}, nil
	case "simple":
		return SimpleScheme{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown key scheme %q", domain.ErrInvalidInput, name)
	}
}
