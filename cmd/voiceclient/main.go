// Command voiceclient is a manual test client for the /ws/voice endpoint.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Audio   string `json:"audio,omitempty"`
	Format  string `json:"format,omitempty"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8000/ws/voice", "voice websocket endpoint")
	audioPath := flag.String("audio", "", "audio file to send as one utterance")
	format := flag.String("format", "", "audio format (defaults to the file extension, then webm)")
	outPath := flag.String("out", "response.mp3", "where to save the audio reply")
	timeout := flag.Duration("timeout", 45*time.Second, "how long to wait for each reply")
	flag.Parse()

	// Step 1: Connect
	fmt.Printf("Step 1: Connecting to %s...\n", *serverURL)

	conn, resp, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	status := read(conn, *timeout)
	fmt.Printf("✓ Connected: %s\n", status.Message)

	// Step 2: Ping
	fmt.Println("Step 2: Sending ping message...")
	if err := conn.WriteJSON(envelope{Type: "ping"}); err != nil {
		log.Fatalf("Failed to send ping: %v", err)
	}
	if reply := read(conn, *timeout); reply.Type != "pong" {
		log.Fatalf("Expected pong, got %s: %s", reply.Type, reply.Message)
	}
	fmt.Println("✓ Received pong")

	if *audioPath == "" {
		fmt.Println("✓ No audio file given, done")
		closeGracefully(conn)
		return
	}

	// Step 3: Send the utterance
	data, err := os.ReadFile(*audioPath)
	if err != nil {
		log.Fatalf("Failed to read audio file: %v", err)
	}
	audioFormat := *format
	if audioFormat == "" {
		audioFormat = strings.TrimPrefix(filepath.Ext(*audioPath), ".")
	}

	fmt.Printf("Step 3: Sending %d bytes of %s audio...\n", len(data), audioFormat)
	start := time.Now()
	if err := conn.WriteJSON(envelope{
		Type:   "audio_input",
		Audio:  base64.StdEncoding.EncodeToString(data),
		Format: audioFormat,
	}); err != nil {
		log.Fatalf("Failed to send audio: %v", err)
	}

	// Step 4: Wait for the reply, skipping status updates
	fmt.Println("Step 4: Waiting for voice response...")
	for {
		reply := read(conn, *timeout)
		switch reply.Type {
		case "status":
			fmt.Printf("  status: %s\n", reply.Message)
			continue
		case "error":
			log.Fatalf("Server error: %s", reply.Message)
		case "audio_response":
			audio, err := base64.StdEncoding.DecodeString(reply.Audio)
			if err != nil {
				log.Fatalf("Failed to decode audio response: %v", err)
			}
			if err := os.WriteFile(*outPath, audio, 0o644); err != nil {
				log.Fatalf("Failed to save audio response: %v", err)
			}
			fmt.Printf("✓ Saved %d bytes to %s in %s\n", len(audio), *outPath, time.Since(start).Round(time.Millisecond))
		default:
			fmt.Printf("  ignoring %s message\n", reply.Type)
			continue
		}
		break
	}

	closeGracefully(conn)
}

func read(conn *websocket.Conn, timeout time.Duration) envelope {
	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg envelope
	if err := conn.ReadJSON(&msg); err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	return msg
}

func closeGracefully(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second))
}
