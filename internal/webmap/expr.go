package webmap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Reserved expression names. Field elements reference these two singletons
// for their editability toggle; they are created lazily, at most once.
const (
	ExprSystemTrue  = "expr/system/true"
	ExprSystemFalse = "expr/system/false"
)

// Arcade return types declared on registered expressions. ReturnTypeString
// is the default when a request names none.
const (
	ReturnTypeString = "string"
	ReturnTypeNumber = "number"
)

// ExpressionInfo is one named computed-value definition. Names are unique
// within a document; form elements reference expressions by name.
type ExpressionInfo struct {
	Name       string
	Expression string
	ReturnType string
	Title      string

	rest map[string]json.RawMessage
}

func unmarshalExpressionInfos(data []byte) ([]*ExpressionInfo, error) {
	var rawList []json.RawMessage
	if err := json.Unmarshal(data, &rawList); err != nil {
		return nil, fmt.Errorf("expressionInfos: %w", err)
	}

	infos := make([]*ExpressionInfo, 0, len(rawList))
	for i, rawInfo := range rawList {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(rawInfo, &raw); err != nil {
			return nil, fmt.Errorf("expressionInfos[%d]: %w", i, err)
		}

		info := &ExpressionInfo{rest: raw}
		for key, dst := range map[string]*string{
			"name":       &info.Name,
			"expression": &info.Expression,
			"returnType": &info.ReturnType,
			"title":      &info.Title,
		} {
			if v, ok := raw[key]; ok {
				if err := json.Unmarshal(v, dst); err != nil {
					return nil, fmt.Errorf("expressionInfos[%d] %s: %w", i, key, err)
				}
				delete(raw, key)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// MarshalJSON implements json.Marshaler for ExpressionInfo.
func (e *ExpressionInfo) MarshalJSON() ([]byte, error) {
	m := cloneRest(e.rest, 4)
	for key, v := range map[string]string{
		"name":       e.Name,
		"expression": e.Expression,
		"returnType": e.ReturnType,
		"title":      e.Title,
	} {
		if err := setJSON(m, key, v); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

// UpsertOutcome reports what Upsert did to the document.
type UpsertOutcome int

const (
	// UpsertUnchanged means the expression already existed and was left alone.
	UpsertUnchanged UpsertOutcome = iota
	// UpsertCreated means a new expression was appended.
	UpsertCreated
	// UpsertUpdated means an existing expression's text was rewritten.
	UpsertUpdated
)

// String implements fmt.Stringer for UpsertOutcome.
func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// UpsertRequest names an expression to register and its formatted text.
type UpsertRequest struct {
	Name       string
	Expression string
	// Title is synthesized from Name when empty: namespace prefix stripped,
	// separators spaced, words title-cased.
	Title string
	// ReturnType defaults to ReturnTypeString.
	ReturnType string
	// Overwrite permits rewriting an existing expression's text. Without it
	// an existing name is an idempotent no-op.
	Overwrite bool
}

// Registry manages a document's expression list without ever duplicating a
// name. All mutations go through it so repeated runs of the same
// configuration leave the list stable.
type Registry struct {
	doc    *Document
	logger *slog.Logger
}

// NewRegistry wraps doc's document-level expression list. A nil logger
// falls back to slog.Default().
func NewRegistry(doc *Document, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{doc: doc, logger: logger}
}

// Find returns the expression registered under name, or nil.
func (r *Registry) Find(name string) *ExpressionInfo {
	for _, info := range r.doc.Expressions {
		if info.Name == name {
			return info
		}
	}
	return nil
}

// EnsureSystemConstants registers the boolean true/false singletons if
// either is missing, returning the names it created.
func (r *Registry) EnsureSystemConstants() []string {
	var created []string
	for _, constant := range []struct {
		name, expression, title string
	}{
		{ExprSystemFalse, "false", "False"},
		{ExprSystemTrue, "true", "True"},
	} {
		if r.Find(constant.name) != nil {
			continue
		}
		r.append(&ExpressionInfo{
			Name:       constant.name,
			Expression: constant.expression,
			ReturnType: "boolean",
			Title:      constant.title,
		})
		created = append(created, constant.name)
		r.logger.Info("registered system constant", "name", constant.name)
	}
	return created
}

// Upsert registers req.Name per the idempotent upsert contract: an existing
// name is untouched unless Overwrite is set, and even then only rewritten
// when the text differs, so repeated runs cause no persistence churn.
func (r *Registry) Upsert(req UpsertRequest) UpsertOutcome {
	if existing := r.Find(req.Name); existing != nil {
		if !req.Overwrite {
			r.logger.Info("expression already registered", "name", req.Name)
			return UpsertUnchanged
		}
		if existing.Expression == req.Expression {
			return UpsertUnchanged
		}
		existing.Expression = req.Expression
		r.logger.Info("rewrote expression", "name", req.Name)
		return UpsertUpdated
	}

	r.EnsureSystemConstants()

	title := req.Title
	if title == "" {
		title = SynthesizeTitle(req.Name)
	}
	returnType := req.ReturnType
	if returnType == "" {
		returnType = ReturnTypeString
	}

	r.append(&ExpressionInfo{
		Name:       req.Name,
		Expression: req.Expression,
		ReturnType: returnType,
		Title:      title,
	})
	r.logger.Info("registered expression", "name", req.Name, "title", title)
	return UpsertCreated
}

func (r *Registry) append(info *ExpressionInfo) {
	r.doc.EnsureExpressions()
	r.doc.Expressions = append(r.doc.Expressions, info)
}

// SynthesizeTitle derives a display title from an expression name:
// "expr/set-project-number" becomes "Set Project Number".
func SynthesizeTitle(name string) string {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	return titleWords(strings.ReplaceAll(base, "-", " "))
}

// FieldLabel derives a form display label from a field name:
// "project_number" becomes "Project Number".
func FieldLabel(fieldName string) string {
	return titleWords(strings.ReplaceAll(fieldName, "_", " "))
}

// titleWords collapses whitespace and title-cases each word. Casers carry
// transformer state, so one is built per call rather than shared.
func titleWords(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
