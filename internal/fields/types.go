// Package fields classifies Esri attribute field types and formats raw
// configuration values into SQL where-clause fragments and Arcade literals.
package fields

// Esri field type names as they appear in a layer's schema.
const (
	TypeInteger      = "esriFieldTypeInteger"
	TypeSmallInteger = "esriFieldTypeSmallInteger"
	TypeOID          = "esriFieldTypeOID"
	TypeDouble       = "esriFieldTypeDouble"
	TypeSingle       = "esriFieldTypeSingle"
	TypeDate         = "esriFieldTypeDate"
	TypeString       = "esriFieldTypeString"
	TypeGUID         = "esriFieldTypeGUID"
	TypeGlobalID     = "esriFieldTypeGlobalID"
)

// MaxStringLength is the conventional string-field limit; longer values are
// accepted with a warning.
const MaxStringLength = 255

// Field is one attribute field of a layer's schema.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias,omitempty"`
}

// Family groups the Esri field types by formatting rule.
type Family int

const (
	// FamilyString covers the string types and any type this package does
	// not recognize.
	FamilyString Family = iota
	FamilyInteger
	FamilyFloat
	FamilyDate
)

func (f Family) String() string {
	switch f {
	case FamilyInteger:
		return "integer"
	case FamilyFloat:
		return "float"
	case FamilyDate:
		return "date"
	default:
		return "string"
	}
}

// FamilyOf maps a declared Esri field type onto its formatting family.
// Unknown and empty types fall into FamilyString.
func FamilyOf(declaredType string) Family {
	switch declaredType {
	case TypeInteger, TypeSmallInteger, TypeOID:
		return FamilyInteger
	case TypeDouble, TypeSingle:
		return FamilyFloat
	case TypeDate:
		return FamilyDate
	default:
		return FamilyString
	}
}

var displayNames = map[string]string{
	TypeInteger:      "Integer",
	TypeSmallInteger: "Small Integer",
	TypeOID:          "Object ID",
	TypeDouble:       "Double",
	TypeSingle:       "Float",
	TypeDate:         "Date",
	TypeString:       "Text",
	TypeGUID:         "GUID",
	TypeGlobalID:     "Global ID",
}

// DisplayName returns the human-readable name of an Esri field type, or the
// type itself when unrecognized.
func DisplayName(declaredType string) string {
	if name, ok := displayNames[declaredType]; ok {
		return name
	}
	return declaredType
}
