package notion

// Property types the engine reads or writes
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeStatus      = "status"
	TypeURL         = "url"
	TypeDate        = "date"
)

// Database is the subset of a database object the engine needs
type Database struct {
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title,omitempty"`
	Properties map[string]PropertySchema `json:"properties"`
}

// PropertySchema describes one database column. On update only the
// type-specific block is sent
type PropertySchema struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Type        string      `json:"type,omitempty"`
	Select      *OptionList `json:"select,omitempty"`
	MultiSelect *OptionList `json:"multi_select,omitempty"`
	Status      *OptionList `json:"status,omitempty"`
}

// OptionList holds the allowed options of a categorical property
type OptionList struct {
	Options []Option `json:"options"`
}

// Option is one categorical option; ID and Color are echoed back untouched on update
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Page is the subset of a page object the engine needs
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Parent places a new page under a database
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// PropertyValue is a typed page property value; exactly one field is set
type PropertyValue struct {
	Title       []RichText    `json:"title,omitempty"`
	RichText    []RichText    `json:"rich_text,omitempty"`
	Select      *SelectValue  `json:"select,omitempty"`
	MultiSelect []SelectValue `json:"multi_select,omitempty"`
	Status      *SelectValue  `json:"status,omitempty"`
	URL         *string       `json:"url,omitempty"`
	Date        *DateValue    `json:"date,omitempty"`
}

// SelectValue references an option by name
type SelectValue struct {
	Name string `json:"name"`
}

// DateValue is a date or datetime with an optional IANA zone
type DateValue struct {
	Start    string `json:"start"`
	TimeZone string `json:"time_zone,omitempty"`
}

// RichText is one text run
type RichText struct {
	Type        string       `json:"type"`
	Text        TextContent  `json:"text"`
	Annotations *Annotations `json:"annotations,omitempty"`
	PlainText   string       `json:"plain_text,omitempty"`
}

// TextContent is the body of a text run
type TextContent struct {
	Content string `json:"content"`
}

// Annotations styles a text run
type Annotations struct {
	Bold bool `json:"bold,omitempty"`
}

// Text builds a plain text run
func Text(s string) RichText { return RichText{Type: "text", Text: TextContent{Content: s}} }

// Bold builds a bold text run
func Bold(s string) RichText {
	r := Text(s)
	r.Annotations = &Annotations{Bold: true}
	return r
}

// Block is a child block; only paragraphs are appended
type Block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
}

// Paragraph holds the text runs of a paragraph block
type Paragraph struct {
	RichText []RichText `json:"rich_text"`
}

// ParagraphBlock builds a paragraph block from runs
func ParagraphBlock(runs ...RichText) Block {
	return Block{Object: "block", Type: "paragraph", Paragraph: &Paragraph{RichText: runs}}
}

// Filter is a single property filter for database queries
type Filter struct {
	Property string      `json:"property"`
	RichText *TextFilter `json:"rich_text,omitempty"`
}

// TextFilter matches text properties
type TextFilter struct {
	Equals string `json:"equals"`
}

// QueryRequest is the body of a database query
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
}

// QueryResponse is one page of query results
type QueryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}
