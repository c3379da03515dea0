package model

// Category is a named bucket partitioning assets by role.
type Category string

const (
	CategorySelfPhoto Category = "self-photo"
	CategoryGarment   Category = "garment"
	CategoryMannequin Category = "mannequin"
	CategoryProduct   Category = "product"
)

// Group names a set of categories that share one asset library instance.
type Group string

const (
	GroupLibrary Group = "library" // personal wardrobe: self photos + garments
	GroupCatalog Group = "catalog" // business assets: mannequins + products
)

// Categories returns the categories owned by the group, in display order.
func (g Group) Categories() []Category {
	switch g {
	case GroupLibrary:
		return []Category{CategorySelfPhoto, CategoryGarment}
	case GroupCatalog:
		return []Category{CategoryMannequin, CategoryProduct}
	}
	return nil
}

// GroupOf returns the group that owns the category.
func GroupOf(c Category) (Group, bool) {
	switch c {
	case CategorySelfPhoto, CategoryGarment:
		return GroupLibrary, true
	case CategoryMannequin, CategoryProduct:
		return GroupCatalog, true
	}
	return "", false
}

// ParseCategory validates a category name from the request path.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := GroupOf(c)
	return c, ok
}

// AssetRecord is one stored image mirrored from the remote store.
type AssetRecord struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	FileName    string   `json:"file_name"`
	DisplayURL  string   `json:"display_url"`
	// InlinePayload holds the data URI only while the record's bytes are
	// in transit and no DisplayURL exists yet. Confirmed records carry
	// none and resolve through DisplayURL, keeping memory bounded.
	InlinePayload string `json:"-"`
	// RemoteHandle identifies the object in the remote store for deletion.
	// Empty for records that have not been confirmed uploaded.
	RemoteHandle string `json:"-"`
}

// Pending reports whether the record has not been confirmed stored
// remotely. Pending records are not selectable as generation inputs.
func (a AssetRecord) Pending() bool {
	return a.RemoteHandle == ""
}
