// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	device := strings.TrimSpace(os.Getenv("DEVICE_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	push := strings.TrimSpace(os.Getenv("PUSH_WEBHOOK_URL"))
	window := strings.TrimSpace(os.Getenv("CANCEL_WINDOW_MS"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (password enrollment will 403).")
	}
	if device == "" {
		fail("DEVICE_API_KEYS is empty (device routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "DEVICE_API_KEYS": device} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("ADDR is empty; default in your app may be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	if db == "" {
		warn("DATABASE_URL empty — API will use the in-memory store; alerts will not survive a restart.")
	} else {
		ok("DATABASE_URL present")
	}

	if push == "" {
		warn("PUSH_WEBHOOK_URL empty — guardians and users will not receive pushes.")
	} else {
		ok("PUSH_WEBHOOK_URL present")
	}

	if window != "" {
		ms, err := strconv.Atoi(window)
		if err != nil || ms <= 0 {
			fail("CANCEL_WINDOW_MS must be a positive integer (milliseconds).")
		}
		if ms < 10_000 {
			warn("CANCEL_WINDOW_MS under 10s leaves users almost no time to cancel a false alarm.")
		}
		ok("CANCEL_WINDOW_MS=" + window)
	}

	ok("preflight passed")
}
