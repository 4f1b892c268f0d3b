package model

// ForgeRepo carries the read-only data fetched from the hosting platform
// (GitHub or GitLab) to enrich the release context. Fields the platform
// does not report stay at their zero values.
type ForgeRepo struct {
	CommitCount    *uint64
	SPDXIdentifier string
	ProjectID      int64
	OwnerID        int64
	Topics         []string
	Description    string
}

// PushRequest is the fully backfilled input to the push pipeline. The CLI
// layer performs one backfill pass per execution environment to populate
// it, so everything downstream is a pure function of this struct.
type PushRequest struct {
	Environment ExecutionEnvironment

	Host       string
	Visibility Visibility

	Repository             string
	ExplicitName           string
	DisableRenameSubgroups bool

	GitRoot   string
	Directory string // flake subdirectory relative to GitRoot
	Rev       string // explicit revision override

	Tag          string
	Rolling      bool
	RollingMinor *uint64

	Labels         []string
	ExtraTags      []string // deprecated spelling of Labels
	SPDXExpression string
	Mirror         bool

	JWTIssuerURI       string
	ErrorOnConflict    bool
	IncludeOutputPaths bool
}
