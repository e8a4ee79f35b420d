// Package settings persists observatory configuration in a bbolt database.
package settings

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket      = "indi"
	settingsKey = "settings"
)

// Telescope names the INDI devices making up one telescope rig.
type Telescope struct {
	Mount         string
	PrimaryCamera string
	Focuser       string
	FilterWheel   string
	FlatPanel     string
}

// Settings is the persisted configuration.
type Settings struct {
	ServerAddr string
	Telescope  Telescope
}

// Default returns the out-of-the-box configuration, pointing at a local
// server with the standard simulator devices.
func Default() Settings {
	return Settings{
		ServerAddr: "indi:7624",
		Telescope: Telescope{
			Mount:         "Telescope Simulator",
			PrimaryCamera: "CCD Simulator",
			Focuser:       "Focuser Simulator",
			FilterWheel:   "Filter Simulator",
			FlatPanel:     "Light Panel Simulator",
		},
	}
}

type Store struct {
	db *bolt.DB
}

// NewStore creates a new store instance and sets default values if they are not already set.
func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

// setDefaults sets the default configuration values if they are not already set in the database.
func (s *Store) setDefaults() error {
	if _, err := s.Get(); err != nil {
		log.Infof("Setting default settings")
		return s.Set(Default())
	}

	return nil
}

// Set saves the settings as a json string in the database.
func (s *Store) Set(cfg Settings) error {
	if cfg.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(cfg)
		return b.Put([]byte(settingsKey), value)
	})
}

// Get retrieves the settings from the database.
func (s *Store) Get() (Settings, error) {
	var cfg Settings

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(settingsKey))
		if value == nil {
			return fmt.Errorf("key settings not found")
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
