package portal

// ItemTypeWebMap is the item type of a web map document.
const ItemTypeWebMap = "Web Map"

// Item is the catalog metadata of one content item.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Owner       string   `json:"owner"`
	Modified    int64    `json:"modified"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// layerSchema is the slice of a layer's service description this package
// cares about.
type layerSchema struct {
	Name   string        `json:"name"`
	Fields []schemaField `json:"fields"`
}

type schemaField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

type updateResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}
