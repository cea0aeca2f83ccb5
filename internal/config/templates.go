package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "sim":
		return simTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `application_id = "00fabcdef0example"
region = "us-east-1"
execution_role_arn = "arn:aws:iam::123456789012:role/emr-serverless-job-role"
kind = "pyspark"

# endpoint = "http://127.0.0.1:8998"   # point at livysim for local work

heartbeat_timeout = "60s"
wait_timeout = "5m"
session_poll_interval = "5s"
statement_poll_interval = "2s"
http_timeout = "30s"

[retry]
max_retries = 3
backoff_base = 2.0
`

const simTemplate = `node = "livysim.local"
listen_addr = ":8998"
ready_after_polls = 2
statement_polls = 1
fail_first = 0
require_auth = false
`
