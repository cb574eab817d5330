// Package prompt provides the fixed catalog of workload templates and the
// sizing logic that turns a template plus a token budget into prompt text.
package prompt

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Family groups templates into the two workload families selected with
// equal weight.
type Family string

const (
	FamilyMCP     Family = "MCP"
	FamilyAgentic Family = "Agentic"
)

// Template is one immutable prompt pattern. ContextFraction is the share of
// the configured max context allotted before random variation.
type Template struct {
	Name            string
	Family          Family
	ContextFraction float64
	body            string
	context         string
}

// Workload returns the tag recorded on outcomes, e.g. "MCP_file_search".
func (t Template) Workload() string {
	return fmt.Sprintf("%s_%s", t.Family, t.Name)
}

// Render substitutes the template's static context and pads the result with
// filler until it reaches approximately targetTokens.
func (t Template) Render(targetTokens int) string {
	text := strings.ReplaceAll(t.body, "{context}", t.context)
	current := EstimateTokens(text)
	if current >= targetTokens {
		return text
	}
	charsNeeded := (targetTokens - current) * charsPerToken
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\nAdditional context: ")
	sb.WriteString(strings.Repeat("detail ", charsNeeded/len("detail ")+1))
	return sb.String()
}

const charsPerToken = 4

// EstimateTokens approximates a token count from text length. It is a sizing
// heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Catalog holds the fixed template set and a seeded source of randomness for
// selection and sizing. Safe for use from concurrent sessions.
type Catalog struct {
	mcp     []Template
	agentic []Template

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalog(seed int64) *Catalog {
	return &Catalog{
		mcp:     mcpTemplates,
		agentic: agenticTemplates,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Pick chooses a workload family with equal probability, then one template
// uniformly within the chosen family.
func (c *Catalog) Pick() Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rnd.Float64() < 0.5 {
		return c.mcp[c.rnd.Intn(len(c.mcp))]
	}
	return c.agentic[c.rnd.Intn(len(c.agentic))]
}

// TargetTokens computes the token budget for one request:
// floor(contextFraction * maxContextTokens * U(0.7, 1.0)).
func (c *Catalog) TargetTokens(t Template, maxContextTokens int) int {
	c.mu.Lock()
	variation := 0.7 + 0.3*c.rnd.Float64()
	c.mu.Unlock()
	base := t.ContextFraction * float64(maxContextTokens)
	return int(base * variation)
}

// Templates returns every template in the catalog.
func (c *Catalog) Templates() []Template {
	out := append([]Template(nil), c.mcp...)
	return append(out, c.agentic...)
}

var mcpTemplates = []Template{
	{
		Name:            "file_search",
		Family:          FamilyMCP,
		ContextFraction: 0.3,
		body: `You are an AI assistant with access to a file system.
The user has asked you to search for files matching a pattern.
Available tools:
- search_files(pattern: str, path: str) -> List[str]
- read_file(path: str) -> str
- list_directory(path: str) -> List[str]

Context: You have access to a large codebase with the following structure:
{context}

User request: Find all Python files that contain database connection logic and summarize their contents.
`,
		context: fileTreeContext(),
	},
	{
		Name:            "data_analysis",
		Family:          FamilyMCP,
		ContextFraction: 0.5,
		body: `You are a data analysis AI with access to query tools.
Available tools:
- execute_query(sql: str) -> DataFrame
- calculate_statistics(data: List) -> Dict
- create_visualization(data: List, chart_type: str) -> Image

Context: Database schema and sample data:
{context}

User request: Analyze the sales trends over the last quarter and identify the top performing products.
`,
		context: schemaContext(),
	},
	{
		Name:            "code_review",
		Family:          FamilyMCP,
		ContextFraction: 0.4,
		body: `You are a code review AI assistant.
Available tools:
- analyze_code(file_path: str) -> CodeAnalysis
- check_security(code: str) -> SecurityReport
- suggest_improvements(code: str) -> List[Suggestion]

Context: Review the following code files:
{context}

User request: Review these files for security vulnerabilities and performance issues.
`,
		context: codeFilesContext(),
	},
}

var agenticTemplates = []Template{
	{
		Name:            "research_task",
		Family:          FamilyAgentic,
		ContextFraction: 0.6,
		body: `You are an autonomous research agent. Your task involves:
1. Gathering information from multiple sources
2. Synthesizing the information
3. Drawing conclusions
4. Providing recommendations

Previous research context:
{context}

Current task: Research the impact of AI on software development practices and provide a comprehensive analysis.
Please break this down into subtasks and execute them systematically.
`,
		context: researchContext(),
	},
	{
		Name:            "planning_task",
		Family:          FamilyAgentic,
		ContextFraction: 0.7,
		body: `You are a planning agent responsible for breaking down complex tasks.
You have access to previous planning sessions and outcomes.

Historical planning data:
{context}

Current objective: Design and implement a scalable microservices architecture for an e-commerce platform.
Create a detailed implementation plan with:
- Architecture decisions
- Technology choices
- Implementation steps
- Risk assessment
- Timeline estimates
`,
		context: planningContext(),
	},
	{
		Name:            "problem_solving",
		Family:          FamilyAgentic,
		ContextFraction: 0.8,
		body: `You are a problem-solving agent with reasoning capabilities.
You need to analyze complex scenarios and provide solutions.

Problem context and constraints:
{context}

Problem: A distributed system is experiencing intermittent failures. Analyze the logs, identify root causes, and propose solutions.
Use chain-of-thought reasoning to work through this systematically.
`,
		context: logContext(),
	},
}

func fileTreeContext() string {
	var lines []string
	for i := 0; i < 10; i++ {
		for j := 0; j < 5; j++ {
			lines = append(lines, fmt.Sprintf("src/module_%d/file_%d.py", i, j))
		}
	}
	return strings.Join(lines, "\n")
}

func schemaContext() string {
	repeat := func(cols []string, n int) []string {
		out := make([]string, 0, len(cols)*n)
		for i := 0; i < n; i++ {
			out = append(out, cols...)
		}
		return out
	}
	sample := make([]map[string]any, 20)
	for i := range sample {
		sample[i] = map[string]any{"record": i, "data": strings.Repeat("sample", 10)}
	}
	doc := map[string]any{
		"tables": map[string]any{
			"sales":     map[string]any{"columns": repeat([]string{"id", "product_id", "amount", "date", "customer_id"}, 10)},
			"products":  map[string]any{"columns": repeat([]string{"id", "name", "category", "price"}, 10)},
			"customers": map[string]any{"columns": repeat([]string{"id", "name", "email", "region"}, 10)},
		},
		"sample_data": sample,
	}
	encoded, _ := json.MarshalIndent(doc, "", "  ")
	return string(encoded)
}

func codeFilesContext() string {
	var files []string
	for i := 0; i < 5; i++ {
		files = append(files, fmt.Sprintf("# File: module_%d.py\n%s", i,
			strings.Repeat("def function():\n    pass\n", 20)))
	}
	return strings.Join(files, "\n\n")
}

func researchContext() string {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("Study %d: %s", i, strings.Repeat("Finding ", 30)))
	}
	return strings.Join(lines, "\n")
}

func planningContext() string {
	sessions := make([]map[string]any, 5)
	for i := range sessions {
		tasks := make([]string, 5)
		for j := range tasks {
			tasks[j] = strings.Repeat("task", 10)
		}
		sessions[i] = map[string]any{
			"session":  i,
			"tasks":    tasks,
			"outcomes": strings.Repeat("success", 20),
		}
	}
	encoded, _ := json.MarshalIndent(sessions, "", "  ")
	return string(encoded)
}

func logContext() string {
	var lines []string
	for i := 0; i < 15; i++ {
		entry, _ := json.Marshal(map[string]any{
			"timestamp": i,
			"level":     "ERROR",
			"message":   strings.Repeat("error", 10),
			"stack":     strings.Repeat("trace", 10),
		})
		lines = append(lines, fmt.Sprintf("Log entry %d: %s", i, entry))
	}
	return strings.Join(lines, "\n")
}
