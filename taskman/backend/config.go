package backend

import (
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/taskman/types"
)

// Config is the connection parameter blob stored with a storage
// configuration. Only the fields relevant to StorageType are used.
// JSONDescription, when set, replaces the flat fields entirely.
type Config struct {
	ApplicationName string `json:"application_name,omitempty"`
	StorageType     Kind   `json:"storage_type"`
	URL             string `json:"url,omitempty"`
	AuthType        string `json:"auth_type,omitempty"`
	Realm           string `json:"realm,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	JSONDescription string `json:"json_description,omitempty"`

	Path            string   `json:"path,omitempty"`
	DSN             string   `json:"dsn,omitempty"`
	Bucket          string   `json:"bucket,omitempty"`
	Prefix          string   `json:"prefix,omitempty"`
	Region          string   `json:"region,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty"`
	AccessKeyID     string   `json:"access_key_id,omitempty"`
	SecretAccessKey string   `json:"secret_access_key,omitempty"`
	UsePathStyle    bool     `json:"use_path_style,omitempty"`
	StorageList     []Config `json:"storage_list,omitempty"`
}

// ParseConfig decodes a configuration blob. Unknown storage types are
// rejected here rather than when connecting.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		if types.IsKind(err, types.ErrConfig) {
			return Config{}, err
		}
		return Config{}, types.WrapError(types.ErrConfig, "invalid storage configuration", err)
	}
	if cfg.StorageType == "" {
		return Config{}, types.ConfigError("storage configuration has no storage_type")
	}
	return cfg, nil
}

// Marshal encodes the configuration blob
func (c Config) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage configuration: %w", err)
	}
	return data, nil
}

// Descriptor resolves the configuration to the storage it describes
func (c Config) Descriptor() (Descriptor, error) {
	if c.JSONDescription != "" {
		return ParseDescription([]byte(c.JSONDescription))
	}

	switch c.StorageType {
	case KindLocal:
		return Local{Username: c.Username, ApplicationName: c.ApplicationName, Path: c.Path}, nil
	case KindMemory:
		return Memory{}, nil
	case KindSQLite:
		if c.Path == "" {
			return nil, types.ConfigError("sqlite storage needs a path")
		}
		return SQLite{Path: c.Path}, nil
	case KindPostgres:
		if c.DSN == "" {
			return nil, types.ConfigError("postgres storage needs a dsn")
		}
		return Postgres{DSN: c.DSN}, nil
	case KindS3:
		if c.Bucket == "" {
			return nil, types.ConfigError("s3 storage needs a bucket")
		}
		return S3{
			Bucket:          c.Bucket,
			Prefix:          c.Prefix,
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UsePathStyle:    c.UsePathStyle,
		}, nil
	case KindReplicate:
		if len(c.StorageList) == 0 {
			return nil, types.ConfigError("replicate storage needs a storage_list")
		}
		rep := Replicate{Storages: make([]Descriptor, 0, len(c.StorageList))}
		for _, sub := range c.StorageList {
			d, err := sub.Descriptor()
			if err != nil {
				return nil, err
			}
			rep.Storages = append(rep.Storages, d)
		}
		return rep, nil
	case KindDAV:
		return DAV{URL: c.URL, AuthType: c.AuthType, Realm: c.Realm, Username: c.Username, Password: c.Password}, nil
	case KindDropbox:
		return Dropbox{AccessToken: c.AccessToken}, nil
	case KindDrupal:
		return Drupal{URL: c.URL, Username: c.Username, Password: c.Password}, nil
	case KindERP5:
		return ERP5{URL: c.URL, Username: c.Username, Password: c.Password}, nil
	}
	return nil, types.ConfigError(fmt.Sprintf("unsupported storage type: %s", c.StorageType))
}
