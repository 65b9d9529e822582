// Package backend maps storage configurations to backend descriptors and
// opens them.
//
// A Descriptor is a closed set of variants, one per supported storage type,
// each carrying only the parameters that storage needs. Factory.Open switches
// over every variant.
package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arthur-debert/taskman/types"
)

// Kind names a storage type as written in a configuration's storage_type
type Kind string

const (
	KindLocal     Kind = "local"
	KindMemory    Kind = "memory"
	KindSQLite    Kind = "sqlite"
	KindPostgres  Kind = "postgres"
	KindS3        Kind = "s3"
	KindReplicate Kind = "replicate"
	KindDAV       Kind = "dav"
	KindDropbox   Kind = "dropbox"
	KindDrupal    Kind = "drupal"
	KindERP5      Kind = "erp5"
)

// Kinds lists every supported storage type
var Kinds = []Kind{
	KindLocal, KindMemory, KindSQLite, KindPostgres, KindS3,
	KindReplicate, KindDAV, KindDropbox, KindDrupal, KindERP5,
}

// ParseKind validates a storage type name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", types.ConfigError(fmt.Sprintf("unsupported storage type: %s", s))
}

// UnmarshalText rejects unknown storage types
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Descriptor is a fully resolved storage description
type Descriptor interface {
	Kind() Kind
	descriptor()
}

// Local is a JSON file under the data directory, named after the user and
// application unless Path is set
type Local struct {
	Username        string `json:"username,omitempty"`
	ApplicationName string `json:"application_name,omitempty"`
	Path            string `json:"path,omitempty"`
}

// Memory is an ephemeral in-process storage
type Memory struct{}

// SQLite is a database file opened with the pure Go driver
type SQLite struct {
	Path string `json:"path"`
}

// Postgres is a PostgreSQL database reached through DSN
type Postgres struct {
	DSN string `json:"dsn"`
}

// S3 keeps documents as objects under Prefix in Bucket
type S3 struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`
}

// Replicate writes to every storage in the list and reads from the first
// one that answers
type Replicate struct {
	Storages []Descriptor
}

// DAV is a WebDAV server
type DAV struct {
	URL      string `json:"url"`
	AuthType string `json:"auth_type,omitempty"`
	Realm    string `json:"realm,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Dropbox is a Dropbox application folder
type Dropbox struct {
	AccessToken string `json:"access_token"`
}

// Drupal is a Drupal site exposing documents through its REST API
type Drupal struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ERP5 is an ERP5 instance
type ERP5 struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func (Local) Kind() Kind     { return KindLocal }
func (Memory) Kind() Kind    { return KindMemory }
func (SQLite) Kind() Kind    { return KindSQLite }
func (Postgres) Kind() Kind  { return KindPostgres }
func (S3) Kind() Kind        { return KindS3 }
func (Replicate) Kind() Kind { return KindReplicate }
func (DAV) Kind() Kind       { return KindDAV }
func (Dropbox) Kind() Kind   { return KindDropbox }
func (Drupal) Kind() Kind    { return KindDrupal }
func (ERP5) Kind() Kind      { return KindERP5 }

func (Local) descriptor()     {}
func (Memory) descriptor()    {}
func (SQLite) descriptor()    {}
func (Postgres) descriptor()  {}
func (S3) descriptor()        {}
func (Replicate) descriptor() {}
func (DAV) descriptor()       {}
func (Dropbox) descriptor()   {}
func (Drupal) descriptor()    {}
func (ERP5) descriptor()      {}

// ParseDescription decodes a raw JSON storage description such as
// {"type":"local","username":"Admin","application_name":"Local"}.
// A "query" wrapper is unwrapped to its sub_storage since every handle
// answers queries itself.
func ParseDescription(data []byte) (Descriptor, error) {
	var head struct {
		Type        string            `json:"type"`
		SubStorage  json.RawMessage   `json:"sub_storage"`
		StorageList []json.RawMessage `json:"storage_list"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, types.WrapError(types.ErrConfig, "invalid storage description", err)
	}

	if head.Type == "query" {
		if len(head.SubStorage) == 0 {
			return nil, types.ConfigError("query storage needs a sub_storage")
		}
		return ParseDescription(head.SubStorage)
	}

	kind, err := ParseKind(head.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindLocal:
		return decodeAs[Local](data)
	case KindMemory:
		return Memory{}, nil
	case KindSQLite:
		return decodeAs[SQLite](data)
	case KindPostgres:
		return decodeAs[Postgres](data)
	case KindS3:
		return decodeAs[S3](data)
	case KindDAV:
		return decodeAs[DAV](data)
	case KindDropbox:
		return decodeAs[Dropbox](data)
	case KindDrupal:
		return decodeAs[Drupal](data)
	case KindERP5:
		return decodeAs[ERP5](data)
	case KindReplicate:
		if len(head.StorageList) == 0 {
			return nil, types.ConfigError("replicate storage needs a storage_list")
		}
		rep := Replicate{Storages: make([]Descriptor, 0, len(head.StorageList))}
		for _, raw := range head.StorageList {
			sub, err := ParseDescription(raw)
			if err != nil {
				return nil, err
			}
			rep.Storages = append(rep.Storages, sub)
		}
		return rep, nil
	}
	return nil, types.ConfigError(fmt.Sprintf("unsupported storage type: %s", head.Type))
}

func decodeAs[T Descriptor](data []byte) (Descriptor, error) {
	var d T
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, types.WrapError(types.ErrConfig, "invalid storage description", err)
	}
	return d, nil
}

// Describe returns a short human readable form, without secrets
func Describe(d Descriptor) string {
	switch d := d.(type) {
	case Local:
		if d.Path != "" {
			return fmt.Sprintf("local:%s", d.Path)
		}
		return fmt.Sprintf("local:%s/%s", d.Username, d.ApplicationName)
	case SQLite:
		return fmt.Sprintf("sqlite:%s", d.Path)
	case S3:
		return fmt.Sprintf("s3:%s/%s", d.Bucket, d.Prefix)
	case DAV:
		return fmt.Sprintf("dav:%s", d.URL)
	case Drupal:
		return fmt.Sprintf("drupal:%s", d.URL)
	case ERP5:
		return fmt.Sprintf("erp5:%s", d.URL)
	case Replicate:
		parts := make([]string, 0, len(d.Storages))
		for _, sub := range d.Storages {
			parts = append(parts, Describe(sub))
		}
		return fmt.Sprintf("replicate[%s]", strings.Join(parts, ","))
	}
	return string(d.Kind())
}
