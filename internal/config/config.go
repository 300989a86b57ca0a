package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	ListenAddr string   `koanf:"listenaddr"`
	Booking    Booking  `koanf:"booking"`
	Database   Database `koanf:"db"`
}

type Booking struct {
	// DefaultDurationMinutes is the session length used when a recurring plan
	// does not specify one.
	DefaultDurationMinutes int `koanf:"defaultdurationminutes"`
	// ExtensionScanDays bounds the forward search for a replacement date
	// during an incident extension.
	ExtensionScanDays int `koanf:"extensionscandays"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		ListenAddr: ":8282",
		Booking: Booking{
			DefaultDurationMinutes: 90,
			ExtensionScanDays:      14,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "courtly",
			Pass:   "",
			Name:   "courtly",
			Schema: "courtly",
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "COURTLY_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "COURTLY_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
