package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/exercise-forge/packet"
)

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// readPacket decodes a context packet and returns the input it was built from.
func readPacket(cmd *cobra.Command, path string) (packet.Input, error) {
	if path == "" {
		return packet.Input{}, fmt.Errorf("--packet is required")
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return packet.Input{}, err
	}
	var pk packet.Packet
	if err := json.Unmarshal(data, &pk); err != nil {
		return packet.Input{}, fmt.Errorf("decode packet %s: %w", path, err)
	}
	return pk.Input(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
