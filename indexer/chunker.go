package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	DefaultMinBlockLines = 4
	DefaultMinBlockChars = 50
	DefaultMaxBlockChars = 2000
)

// BlockType classifies what kind of code construct a block contains.
type BlockType string

const (
	BlockFunction  BlockType = "function"
	BlockClass     BlockType = "class"
	BlockInterface BlockType = "interface"
	BlockVariable  BlockType = "variable"
	BlockComment   BlockType = "comment"
	BlockOther     BlockType = "other"
)

// CodeBlock is a contiguous, semantically bounded excerpt of a source file.
// Blocks are immutable once created; a changed file produces a new set of
// blocks that supersede the old set for that path.
type CodeBlock struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	StartLine int       `json:"start_line"` // 1-based, inclusive
	EndLine   int       `json:"end_line"`   // 1-based, inclusive
	Type      BlockType `json:"type"`
	Name      string    `json:"name,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata records how a block was produced.
type Metadata struct {
	Method      string `json:"method"` // tree-sitter | lines | markdown
	NodeType    string `json:"node_type,omitempty"`
	ContentHash string `json:"content_hash"`
}

// blockNamespace seeds the deterministic UUIDv5 block ids. Using UUIDs keeps
// ids directly usable as vector-store point ids.
var blockNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// BlockID computes a deterministic id from the block's identifying fields.
// Identical input always yields the same id, which makes upserts idempotent.
func BlockID(filePath string, startLine, endLine int, content string) string {
	key := fmt.Sprintf("%s:%d:%d:%s", filePath, startLine, endLine, content)
	return uuid.NewSHA1(blockNamespace, []byte(key)).String()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// langSpec describes structural-extraction support for one language.
// Languages absent from the table (or with a nil grammar) fall back to
// line-based chunking deliberately.
type langSpec struct {
	name     string
	language *sitter.Language
	captures map[string]BlockType // definition node type -> block type
}

var languageTable = map[string]langSpec{
	".go": {name: "go", language: golang.GetLanguage(), captures: map[string]BlockType{
		"function_declaration": BlockFunction,
		"method_declaration":   BlockFunction,
		"type_declaration":     BlockClass,
		"const_declaration":    BlockVariable,
		"var_declaration":      BlockVariable,
	}},
	".js": {name: "javascript", language: javascript.GetLanguage(), captures: map[string]BlockType{
		"function_declaration":           BlockFunction,
		"generator_function_declaration": BlockFunction,
		"class_declaration":              BlockClass,
		"method_definition":              BlockFunction,
		"lexical_declaration":            BlockVariable,
		"variable_declaration":           BlockVariable,
	}},
	".jsx": {name: "javascript", language: javascript.GetLanguage(), captures: map[string]BlockType{
		"function_declaration": BlockFunction,
		"class_declaration":    BlockClass,
		"method_definition":    BlockFunction,
		"lexical_declaration":  BlockVariable,
	}},
	".ts": {name: "typescript", language: typescript.GetLanguage(), captures: map[string]BlockType{
		"function_declaration":  BlockFunction,
		"class_declaration":     BlockClass,
		"interface_declaration": BlockInterface,
		"enum_declaration":      BlockClass,
		"method_definition":     BlockFunction,
		"lexical_declaration":   BlockVariable,
	}},
	".tsx": {name: "typescript", language: typescript.GetLanguage(), captures: map[string]BlockType{
		"function_declaration":  BlockFunction,
		"class_declaration":     BlockClass,
		"interface_declaration": BlockInterface,
		"method_definition":     BlockFunction,
		"lexical_declaration":   BlockVariable,
	}},
	".py": {name: "python", language: python.GetLanguage(), captures: map[string]BlockType{
		"function_definition":  BlockFunction,
		"class_definition":     BlockClass,
		"decorated_definition": BlockFunction,
	}},
	".php": {name: "php", language: php.GetLanguage(), captures: map[string]BlockType{
		"function_definition":   BlockFunction,
		"method_declaration":    BlockFunction,
		"class_declaration":     BlockClass,
		"interface_declaration": BlockInterface,
		"trait_declaration":     BlockClass,
	}},
	".cs": {name: "csharp", language: csharp.GetLanguage(), captures: map[string]BlockType{
		"method_declaration":      BlockFunction,
		"constructor_declaration": BlockFunction,
		"class_declaration":       BlockClass,
		"struct_declaration":      BlockClass,
		"record_declaration":      BlockClass,
		"interface_declaration":   BlockInterface,
		"enum_declaration":        BlockClass,
	}},
}

// fallbackLanguages maps extensions without structural support to a language
// label for line-based chunking.
var fallbackLanguages = map[string]string{
	".rs":       "rust",
	".java":     "java",
	".rb":       "ruby",
	".c":        "c",
	".h":        "c",
	".cpp":      "cpp",
	".hpp":      "cpp",
	".cc":       "cpp",
	".sh":       "shell",
	".kt":       "kotlin",
	".swift":    "swift",
	".md":       "markdown",
	".markdown": "markdown",
}

// SupportedExtensions lists every file extension the chunker will accept.
var SupportedExtensions = buildSupportedExtensions()

func buildSupportedExtensions() map[string]bool {
	exts := make(map[string]bool, len(languageTable)+len(fallbackLanguages))
	for ext := range languageTable {
		exts[ext] = true
	}
	for ext := range fallbackLanguages {
		exts[ext] = true
	}
	return exts
}

// Language returns the language label for a file path, or "text" when unknown.
func Language(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if spec, ok := languageTable[ext]; ok {
		return spec.name
	}
	if name, ok := fallbackLanguages[ext]; ok {
		return name
	}
	return "text"
}

// Chunker turns (file path, content) into an ordered sequence of code blocks.
// It performs no I/O beyond the content it is given. Chunk is safe for
// concurrent use: a tree-sitter parser is not, so one is created per parse
// instead of being shared across goroutines.
type Chunker struct {
	minLines int
	minChars int
	maxChars int
}

// NewChunker creates a Chunker. Invalid thresholds are replaced by defaults.
func NewChunker(minLines, minChars, maxChars int) *Chunker {
	if minLines <= 0 {
		minLines = DefaultMinBlockLines
	}
	if minChars <= 0 {
		minChars = DefaultMinBlockChars
	}
	if maxChars <= minChars {
		maxChars = DefaultMaxBlockChars
	}

	return &Chunker{
		minLines: minLines,
		minChars: minChars,
		maxChars: maxChars,
	}
}

// Chunk extracts code blocks from content. Structural extraction is tried
// first when the language supports it; on failure or zero results the chunker
// falls back to line-based chunking. Markdown files chunk by headings.
func (c *Chunker) Chunk(filePath, content string) []CodeBlock {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".md" || ext == ".markdown" {
		return c.chunkMarkdown(filePath, content)
	}

	if spec, ok := languageTable[ext]; ok {
		blocks, err := c.chunkStructural(filePath, content, spec)
		if err != nil {
			log.Printf("Warning: structural chunking failed for %s, falling back to lines: %v", filePath, err)
		}
		if len(blocks) > 0 {
			return blocks
		}
	}

	return c.chunkLines(filePath, content)
}

// candidate is one structural capture before filtering.
type candidate struct {
	nodeType  string
	blockType BlockType
	startByte uint32
	startLine int
	endLine   int
	content   string
	name      string
}

func (c *Chunker) chunkStructural(filePath, content string, spec langSpec) ([]CodeBlock, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.language)

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	var candidates []candidate
	collectCandidates(tree.RootNode(), src, spec, &candidates)

	// Sort by start position; duplicate spans keep the first occurrence.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].startByte < candidates[j].startByte
	})

	seen := make(map[[2]int]bool, len(candidates))
	blocks := make([]CodeBlock, 0, len(candidates))
	for _, cand := range candidates {
		span := [2]int{cand.startLine, cand.endLine}
		if seen[span] {
			continue
		}
		seen[span] = true

		if cand.endLine-cand.startLine+1 < c.minLines {
			continue
		}
		if len(strings.TrimSpace(cand.content)) < c.minChars {
			continue
		}

		blocks = append(blocks, CodeBlock{
			ID:        BlockID(filePath, cand.startLine, cand.endLine, cand.content),
			FilePath:  filePath,
			Content:   cand.content,
			Language:  spec.name,
			StartLine: cand.startLine,
			EndLine:   cand.endLine,
			Type:      cand.blockType,
			Name:      cand.name,
			Metadata: Metadata{
				Method:      "tree-sitter",
				NodeType:    cand.nodeType,
				ContentHash: contentHash(cand.content),
			},
		})
	}

	return blocks, nil
}

func collectCandidates(node *sitter.Node, src []byte, spec langSpec, out *[]candidate) {
	nodeType := node.Type()
	if blockType, ok := spec.captures[nodeType]; ok {
		text := string(src[node.StartByte():node.EndByte()])
		cand := candidate{
			nodeType:  nodeType,
			blockType: refineBlockType(node, blockType),
			startByte: node.StartByte(),
			startLine: int(node.StartPoint().Row) + 1,
			endLine:   int(node.EndPoint().Row) + 1,
			content:   text,
			name:      extractName(node, src, text),
		}
		*out = append(*out, cand)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectCandidates(node.Child(i), src, spec, out)
	}
}

// refineBlockType upgrades Go type declarations wrapping an interface body.
func refineBlockType(node *sitter.Node, blockType BlockType) BlockType {
	if blockType == BlockClass && node.Type() == "type_declaration" {
		if findDescendantByType(node, "interface_type") != nil {
			return BlockInterface
		}
	}
	return blockType
}

// nameRe matches the identifier following a definition keyword on the block's
// first line. Last-resort name extraction when the AST offers nothing.
var nameRe = regexp.MustCompile(`(?:func|function|def|class|interface|trait|type|struct|enum|var|const|let)\s+(?:\([^)]*\)\s+)?([A-Za-z_$][A-Za-z0-9_$]*)`)

// extractName prefers the capture's own name field, then the first
// identifier-like descendant, then a regex over the first line.
func extractName(node *sitter.Node, src []byte, text string) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(src)
	}

	if id := findIdentifierDescendant(node); id != nil {
		return id.Content(src)
	}

	firstLine := text
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if m := nameRe.FindStringSubmatch(firstLine); m != nil {
		return m[1]
	}
	return ""
}

func findIdentifierDescendant(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		t := child.Type()
		if t == "identifier" || t == "type_identifier" || t == "property_identifier" || t == "field_identifier" {
			return child
		}
		if found := findIdentifierDescendant(child); found != nil {
			return found
		}
	}
	return nil
}

func findDescendantByType(node *sitter.Node, typeName string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == typeName {
			return child
		}
		if found := findDescendantByType(child, typeName); found != nil {
			return found
		}
	}
	return nil
}

// chunkLines greedily accumulates whole lines until adding the next line
// would exceed the character ceiling. Lines are never split; a single line
// longer than the ceiling becomes its own chunk.
func (c *Chunker) chunkLines(filePath, content string) []CodeBlock {
	language := Language(filePath)
	lines := strings.Split(content, "\n")

	var blocks []CodeBlock
	var cur []string
	curLen := 0
	curStart := 1

	seal := func(endLine int) {
		if len(cur) == 0 {
			return
		}
		text := strings.Join(cur, "\n")
		if len(strings.TrimSpace(text)) >= c.minChars {
			blocks = append(blocks, c.lineBlock(filePath, language, text, curStart, endLine))
		}
		cur = nil
		curLen = 0
	}

	for i, line := range lines {
		lineNo := i + 1
		added := len(line)
		if len(cur) > 0 {
			added++ // joining newline
		}
		if len(cur) > 0 && curLen+added > c.maxChars {
			seal(lineNo - 1)
			curStart = lineNo
			added = len(line)
		}
		cur = append(cur, line)
		curLen += added
	}
	seal(len(lines))

	return blocks
}

func (c *Chunker) lineBlock(filePath, language, text string, startLine, endLine int) CodeBlock {
	return CodeBlock{
		ID:        BlockID(filePath, startLine, endLine, text),
		FilePath:  filePath,
		Content:   text,
		Language:  language,
		StartLine: startLine,
		EndLine:   endLine,
		Type:      inferBlockType(text),
		Metadata: Metadata{
			Method:      "lines",
			ContentHash: contentHash(text),
		},
	}
}

var headingRe = regexp.MustCompile(`^#{1,6}\s+(.*)$`)

// chunkMarkdown splits a document at heading boundaries. Each heading starts
// a new block containing everything up to the next heading at any level.
func (c *Chunker) chunkMarkdown(filePath, content string) []CodeBlock {
	lines := strings.Split(content, "\n")

	var blocks []CodeBlock
	var cur []string
	curStart := 1
	curName := ""

	seal := func(endLine int) {
		if len(cur) == 0 {
			return
		}
		text := strings.Join(cur, "\n")
		if len(strings.TrimSpace(text)) >= c.minChars {
			block := c.lineBlock(filePath, "markdown", text, curStart, endLine)
			block.Name = curName
			block.Metadata.Method = "markdown"
			blocks = append(blocks, block)
		}
		cur = nil
	}

	for i, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			seal(i)
			curStart = i + 1
			curName = strings.TrimSpace(m[1])
		}
		cur = append(cur, line)
	}
	seal(len(lines))

	return blocks
}

// inferBlockType guesses a block type from content keywords. Used only on
// the line-based path where no AST information exists.
func inferBlockType(content string) BlockType {
	trimmed := strings.TrimSpace(content)

	switch {
	case strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "--"):
		return BlockComment
	case containsKeyword(trimmed, "func ", "function ", "def ", "fn "):
		return BlockFunction
	case containsKeyword(trimmed, "interface "):
		return BlockInterface
	case containsKeyword(trimmed, "class ", "struct ", "trait "):
		return BlockClass
	case containsKeyword(trimmed, "var ", "let ", "const ", ":= "):
		return BlockVariable
	default:
		return BlockOther
	}
}

func containsKeyword(content string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
