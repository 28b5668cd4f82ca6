package domain

import "time"

// EngineKind represents the type of database engine behind a connection.
type EngineKind string

const (
	EnginePostgreSQL EngineKind = "postgresql"
	EngineMySQL      EngineKind = "mysql"
	EngineSQLite     EngineKind = "sqlite"
)

// FileBased reports whether the engine addresses a local file instead of a host.
func (e EngineKind) FileBased() bool {
	return e == EngineSQLite
}

// DefaultPort returns the conventional port for the engine, or nil for file-based engines.
func (e EngineKind) DefaultPort() *int {
	var p int
	switch e {
	case EnginePostgreSQL:
		p = 5432
	case EngineMySQL:
		p = 3306
	default:
		return nil
	}
	return &p
}

// UnreachableHost is the host value the simulated prober treats as refusing connections.
const UnreachableHost = "invalid.host"

// ConnectionDescriptor holds everything needed to reach an external database.
// At most one descriptor in a registry has IsActive set.
type ConnectionDescriptor struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Engine     EngineKind `json:"type"`
	Host       string     `json:"host"`
	Port       *int       `json:"port"`
	Database   string     `json:"database"` // db name, or file path for sqlite
	Username   string     `json:"username"`
	Password   string     `json:"-"`
	Tags       []string   `json:"tags,omitempty"`
	Owner      string     `json:"owner,omitempty"`
	IsActive   bool       `json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsed"`
}

// ConnectionInput is the payload for creating a connection or testing reachability.
type ConnectionInput struct {
	Name     string     `json:"name" validate:"required"`
	Engine   EngineKind `json:"type" validate:"required,oneof=postgresql mysql sqlite"`
	Host     string     `json:"host" validate:"required_unless=Engine sqlite"`
	Port     *int       `json:"port" validate:"omitempty,min=1,max=65535"`
	Database string     `json:"database" validate:"required"`
	Username string     `json:"username" validate:"required_unless=Engine sqlite"`
	Password string     `json:"password"`
	Tags     []string   `json:"tags"`
	Owner    string     `json:"owner"`
}

// ConnectionPatch carries a partial update; nil fields are left untouched.
type ConnectionPatch struct {
	Name     *string     `json:"name"`
	Engine   *EngineKind `json:"type"`
	Host     *string     `json:"host"`
	Port     *int        `json:"port"`
	Database *string     `json:"database"`
	Username *string     `json:"username"`
	Password *string     `json:"password"`
	Tags     []string    `json:"tags"`
	Owner    *string     `json:"owner"`
}

// Input returns the descriptor's editable fields as an input, for re-validation after a patch.
func (c ConnectionDescriptor) Input() ConnectionInput {
	return ConnectionInput{
		Name:     c.Name,
		Engine:   c.Engine,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Username: c.Username,
		Password: c.Password,
		Tags:     c.Tags,
		Owner:    c.Owner,
	}
}

// ConnectionEventKind names a registry state change.
type ConnectionEventKind string

const (
	ConnectionConnected    ConnectionEventKind = "connected"
	ConnectionDisconnected ConnectionEventKind = "disconnected"
	ConnectionUpdated      ConnectionEventKind = "updated"
	ConnectionDeleted      ConnectionEventKind = "deleted"
)

// ConnectionEvent is published by the registry after a successful state change.
type ConnectionEvent struct {
	Kind       ConnectionEventKind
	Connection ConnectionDescriptor
}
