package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
}

type Admin struct {
	Port       int `yaml:"port"`
	PageSize   int `yaml:"page_size"`
	DebounceMS int `yaml:"debounce_ms"`
}

type App struct {
	Database DB    `yaml:"database"`
	Rabbit   MQ    `yaml:"rabbitmq"`
	Admin    Admin `yaml:"admin"`
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	var a App
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, errors.New("invalid config: missing database/rabbitmq host")
	}
	if a.Admin.Port == 0 {
		a.Admin.Port = 3003
	}
	if a.Admin.PageSize == 0 {
		a.Admin.PageSize = 20
	}
	if a.Admin.DebounceMS == 0 {
		a.Admin.DebounceMS = 300
	}
	return a, nil
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
