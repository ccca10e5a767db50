package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/MimeLyc/seabridge/internal/llm"
)

const localSystemPrompt = `You are a professional translator.
Translate the user's message into the language with BCP 47 code %q.%s
Preserve line breaks, markdown and placeholders exactly.
Reply with the translation only, without quotes, notes or explanations.`

type chatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LocalProvider translates through an OpenAI-compatible chat endpoint,
// typically a model served on the same host.
type LocalProvider struct {
	client chatClient
	name   string
}

func NewLocalProvider(cfg *llm.Config) (*LocalProvider, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{client: client, name: "local:" + client.Model()}, nil
}

func newLocalProviderWithClient(client chatClient, name string) *LocalProvider {
	return &LocalProvider{client: client, name: name}
}

func (p *LocalProvider) Name() string {
	return p.name
}

func (p *LocalProvider) TranslateText(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	var hint string
	if sourceLang != "" {
		hint = fmt.Sprintf(" The source language is %q.", sourceLang)
	}
	out, err := p.client.Complete(ctx, fmt.Sprintf(localSystemPrompt, targetLang, hint), text)
	if err != nil {
		if isUnreachable(err) {
			return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// isUnreachable reports connection-level failures where no request reached
// the server.
func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
