package domain

// FolderRole is the role segment of a numbered storage key.
type FolderRole string

const (
	FolderUploaded  FolderRole = "userdoc/uploaded"
	FolderProcessed FolderRole = "userdoc/processed"
	FolderTaskDocs  FolderRole = "task-docs"
)

// AuthMethod selects how outbound agent calls authenticate.
type AuthMethod string

const (
	AuthNone   AuthMethod = "none"
	AuthBasic  AuthMethod = "basic"
	AuthAPIKey AuthMethod = "apiKey"
)

// StageFallback selects the stage number given to names missing from a static stage table.
type StageFallback string

const (
	StageFallbackPrevious StageFallback = "previous"
	StageFallbackSentinel StageFallback = "sentinel"
)

// UnmappedStage is the sentinel stage number for unmapped stage names.
const UnmappedStage = 99

// AllowedContentTypes lists the document types accepted for upload.
var AllowedContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/tiff":      "tiff",
}

// ServiceRole is the role claim of a service token.
type ServiceRole string

const (
	// RoleEngine drives tickets through the pipeline.
	RoleEngine ServiceRole = "engine"
	// RoleAdmin may also manage workflow configurations.
	RoleAdmin ServiceRole = "admin"
)
