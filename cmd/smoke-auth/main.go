package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running sigepic-api: login, fetch the profile with the
// issued token, reject a wrong password, log out.
func main() {
	base := os.Getenv("SIGEPIC_SMOKE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	username := os.Getenv("SIGEPIC_SMOKE_USER")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("SIGEPIC_SMOKE_PASSWORD")
	if password == "" {
		log.Fatal("SIGEPIC_SMOKE_PASSWORD must be set")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	status, body := postJSON(client, base+"/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	if status != http.StatusOK {
		log.Fatalf("login: status %d: %s", status, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		log.Fatalf("login: no token in response: %s", body)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/v1/auth/perfil", nil)
	if err != nil {
		log.Fatalf("perfil request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("perfil: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("perfil: status %d", resp.StatusCode)
	}

	status, _ = postJSON(client, base+"/v1/auth/login", map[string]string{
		"username": username,
		"password": password + "-wrong",
	}, "")
	if status != http.StatusUnauthorized {
		log.Fatalf("wrong password accepted: status %d", status)
	}

	status, body = postJSON(client, base+"/v1/auth/logout", nil, login.Token)
	if status != http.StatusOK {
		log.Fatalf("logout: status %d: %s", status, body)
	}

	fmt.Printf("✅ sigepic-api smoke test passed: %s as %s\n", base, username)
}

func postJSON(client *http.Client, url string, payload any, token string) (int, []byte) {
	var reader *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}
