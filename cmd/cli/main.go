package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Small exerciser for the alert confirmation flow against a running API:
//
//	guardwatch-cli -action create -user u1
//	guardwatch-cli -action confirm -alert <id> -email guardian@example.com
//	guardwatch-cli -action cancel  -alert <id> -email guardian@example.com -password hunter2
//	guardwatch-cli -action status  -alert <id> -email guardian@example.com
func main() {
	var (
		action   = flag.String("action", "status", "create|confirm|cancel|expire|status")
		alertID  = flag.String("alert", "", "alert id")
		userID   = flag.String("user", "", "alerting user id (create)")
		email    = flag.String("email", "", "guardian email")
		password = flag.String("password", "", "cancel password (cancel)")
	)
	flag.Parse()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("API_KEY")

	client := &http.Client{Timeout: 10 * time.Second}

	var (
		resp *http.Response
		err  error
	)
	switch *action {
	case "create":
		resp, err = call(client, api+"/api/alerts", key, http.MethodPost,
			map[string]string{"user_id": *userID, "trigger": "manual"})
	case "confirm":
		resp, err = call(client, api+"/api/alerts/"+*alertID+"/confirm", key, http.MethodPost,
			map[string]string{"guardian_email": *email})
	case "cancel":
		resp, err = call(client, api+"/api/alerts/"+*alertID+"/cancel", key, http.MethodPost,
			map[string]string{"guardian_email": *email, "password": *password})
	case "expire":
		resp, err = call(client, api+"/api/alerts/"+*alertID+"/expire", key, http.MethodPost,
			map[string]string{"guardian_email": *email})
	case "status":
		resp, err = call(client, api+"/api/alerts/"+*alertID+"/confirmation/"+*email, key, http.MethodGet, nil)
	default:
		fmt.Fprintln(os.Stderr, "unknown action:", *action)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(resp.Status)
	fmt.Println(string(body))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func call(client *http.Client, url, key, method string, payload any) (*http.Response, error) {
	var rd io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return client.Do(req)
}
