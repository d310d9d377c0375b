package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider supports generation and embeddings via the Google
// generative-ai SDK. The client is created lazily because the SDK
// constructor wants a context.
type GeminiProvider struct {
	keyName    string
	apiKey     string
	genModel   string
	embedModel string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	genModel := strings.TrimSpace(os.Getenv("SAFEPLAN_GEMINI_MODEL"))
	if genModel == "" {
		genModel = "gemini-1.5-flash"
	}
	embedModel := strings.TrimSpace(os.Getenv("SAFEPLAN_GEMINI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiProvider{
		keyName:    keyName,
		apiKey:     resolveGeminiKey(keyName),
		genModel:   genModel,
		embedModel: embedModel,
	}
}

// Live reports whether a key is configured. The generator's backend gate
// checks this before composing any text.
func (g *GeminiProvider) Live() bool {
	return g.apiKey != ""
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.genModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	model := client.GenerativeModel(g.genModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text("You are a construction safety documentation assistant. Use only the provided evidence; never invent requirements.")},
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned empty candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.embedModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, info, err
	}
	em := client.EmbeddingModel(g.embedModel)
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, info, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return nil, info, fmt.Errorf("gemini returned empty embedding")
		}
		out = append(out, matchDimension(res.Embedding.Values, req.Dimension))
	}
	return out, info, nil
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g.client, nil
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("SAFEPLAN_GEMINI_KEY_" + strings.ToUpper(sanitizeEnvToken(alias))); v != "" {
			return v
		}
	}
	return os.Getenv("GEMINI_API_KEY")
}
