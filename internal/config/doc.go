// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package config loads StudySync configuration with Koanf v2.

# Configuration Sources

Sources are layered, later ones winning:
  - Built-in defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, ./config.yaml, /etc/studysync/config.yaml
  - Mapped environment variables

Only the variables listed in envMappings are read. Comma-separated values are
split for CORS_ORIGINS and TRUSTED_PROXIES.

# Sections

  - server: listen address, request timeout, environment
  - websocket: hub queue sizes, frame size limit, inbound rate, keepalive
  - security: REST rate limit, CORS and websocket origins
  - logging: level, format, caller
  - supervisor: suture failure thresholds and shutdown timeout
  - client: syncctl server URL, local data directory, reconnect/poll timing

# Example YAML

	server:
	  port: 8000
	websocket:
	  message_rate: 20
	  pong_wait: 60s
	security:
	  cors_origins: ["https://study.example.com"]
	client:
	  server_url: wss://study.example.com
	  seed_on_connect: true

Validate is called by Load; an invalid value fails startup with a message
naming the environment variable to fix.
*/
package config
