package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// printStruct prints s according to the --format flag: "json" emits the
// raw protojson encoding, anything else falls back to a generic
// indented JSON rendering (there is no bespoke text layout per RPC,
// since the admin surface is introspection-only).
func printStruct(s *structpb.Struct) error {
	if outputFormat == "json" {
		b, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	b, err := json.MarshalIndent(s.AsMap(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
