// Package config loads and saves the debug server's operator-tunable
// settings, in delve's pkg/config style: a YAML file under a dotfile
// directory, seeded with commented defaults on first run.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".dbgserver"
	configFile string = "config.yml"
)

// Config defines every option the server reads from its config file,
// per SPEC_FULL.md §10.2.
type Config struct {
	// ListenAddr is the TCP address the server binds, e.g. ":19020".
	ListenAddr string `yaml:"listen-addr"`

	// LogFlag is the comma-separated set of logging components to
	// enable at debug level; see pkg/logflags.
	LogFlag string `yaml:"log"`

	// ReapThresholdSeed is loaded and saved with the rest of the file;
	// nothing passes it to the ObjectStore tables (spec §4.6), which are
	// always created with a threshold of 32.
	ReapThresholdSeed int `yaml:"reap-threshold-seed"`

	// MaxStackDepth is loaded and saved with the rest of the file;
	// stackTrace does not read it and always reports every frame.
	MaxStackDepth int `yaml:"max-stack-depth"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file, seeding it with defaults on first run.
func LoadConfig() *Config {
	if err := createConfigPath(); err != nil {
		fmt.Printf("Could not create config directory: %v.\n", err)
		return defaultConfig()
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.\n", err)
		return defaultConfig()
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v\n", err)
			return defaultConfig()
		}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.\n", err)
		return defaultConfig()
	}

	c := defaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		fmt.Printf("Unable to decode config file: %v.\n", err)
		return defaultConfig()
	}
	return c
}

// SaveConfig marshals and saves conf to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(out)
	return err
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:        ":19020",
		ReapThresholdSeed: 32,
		MaxStackDepth:     0,
	}
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	if err := writeDefaultConfig(f); err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the DAP debug server.

# Address the server listens on for incoming DAP client connections.
# listen-addr: ":19020"

# Comma-separated list of logging components to enable at debug level.
# Available: connection, dispatch, threadstate, objectstore
# log: ""

# Initial reap threshold seed for the object store's handle tables.
# The server does not apply this value; its tables always start at 32.
# reap-threshold-seed: 32

# Maximum number of stack frames the stackTrace response reports.
# The server does not apply this value; every frame is reported.
# max-stack-depth: 0
`)
	return err
}

// createConfigPath creates the directory structure config files live in.
func createConfigPath() error {
	p, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
