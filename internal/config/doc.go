// Package config provides configuration structures and utilities for imagecrawler.
// It defines the crawl options, their defaults and validation, and loads the
// optional YAML or JSON configuration file.
package config
