package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	testutil "taskboard/tests/utils"
)

func main() {
	var (
		count    = flag.Int("count", 1, "number of tokens to generate")
		prefix   = flag.String("prefix", "load-user", "prefix for generated user IDs when count > 1")
		start    = flag.Int("start", 1, "starting index for generated user IDs when count > 1")
		output   = flag.String("output", "", "file to write generated tokens as a JSON array")
		name     = flag.String("name", "", "name claim")
		email    = flag.String("email", "", "email claim")
		audience = flag.String("audience", os.Getenv("AUTH0_AUDIENCE"), "aud claim")
		ttl      = flag.Duration("ttl", 0, "token lifetime (default 1h)")
	)
	flag.Parse()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	if *start < 1 {
		log.Fatal("start index must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit user ID cannot be provided when generating multiple tokens")
	}

	opts := testutil.TokenOptions{Name: *name, Email: *email, Audience: *audience, TTL: *ttl}
	tokens, err := generateTokens(*count, *prefix, *start, args, opts)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}

	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func userIDFor(i, count int, prefix string, start int, args []string) string {
	switch {
	case len(args) > 0:
		return args[0]
	case count == 1:
		return prefix
	default:
		return fmt.Sprintf("%s-%d", prefix, start+i)
	}
}

func generateTokens(count int, prefix string, start int, args []string, opts testutil.TokenOptions) ([]string, error) {
	tokens := make([]string, count)
	for i := 0; i < count; i++ {
		tok, err := testutil.TestTokenWithOptions(userIDFor(i, count, prefix, start, args), opts)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
