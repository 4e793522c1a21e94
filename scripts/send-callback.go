//go:build ignore

// send-callback.go posts a signed attestation completion to a locally
// running engine. Development helper for driving tasks fabricated by the
// local submitter through the processor without a real network.
//
// Run with:
//
//	go run scripts/send-callback.go -task <hex-id> -data '{"btcPrice":"68164.45"}'
//
// The secret must match the engine's attestnet.callback_secret setting;
// leave both empty for an unauthenticated dev engine. Replay the same
// invocation twice to watch the idempotency guard answer already_processed.
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

	"github.com/xiangxiecrypto/veritas-sub001/internal/identity"
)

func main() {
	var (
		engine = flag.String("engine", "http://localhost:8080", "engine base URL")
		taskID = flag.String("task", "", "64-char hex task id (required)")
		data   = flag.String("data", `{"btcPrice":"68164.45"}`, "attested payload")
		secret = flag.String("secret", os.Getenv("CALLBACK_SECRET"), "shared callback secret; empty sends no token")
		issuer = flag.String("issuer", "attestnet", "token issuer claim")
		failed = flag.Bool("failed", false, "deliver the completion as a failed attestation")
		ageSec = flag.Int64("age", 0, "payload age in seconds (to exercise the freshness guard)")
	)
	flag.Parse()

	if *taskID == "" {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/send-callback.go -task <hex-id> [-data '...'] [-secret ...] [-failed] [-age 600]")
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]any{
		"task_id":   *taskID,
		"data":      *data,
		"timestamp": time.Now().Unix() - *ageSec,
		"success":   !*failed,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *engine+"/api/v1/attestations/callback", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")

	if *secret != "" {
		token, err := identity.NewNetworkTokenVerifier(*secret, *issuer).Issue(*taskID, 5*time.Minute)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sign token:", err)
			os.Exit(1)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	fmt.Printf("HTTP %d\n", resp.StatusCode)

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(raw))
	}
}
