package orchestrator

import "github.com/fitcheckhq/fitcheck/internal/model"

const tryOnPrompt = "You are a virtual try-on assistant. The first image is a photo " +
	"of a person; the following images are clothing items. Produce one " +
	"photorealistic image of the same person wearing the clothing, keeping " +
	"their face, pose and body unchanged and matching the lighting of the " +
	"original photo."

const catalogPrompt = "You are a product photographer. The first image is a mannequin " +
	"or model; the second is a product. Produce one professional catalog " +
	"image presenting the product on the mannequin."

const defaultCatalogStyle = "A clean, bright, and professional look for an " +
	"e-commerce website. Use a plain light gray background."

// TryOnConfig pairs a self photo with one or more garments and saves
// results alongside the user's photos.
func TryOnConfig() Config {
	return Config{
		SubjectCategory: model.CategorySelfPhoto,
		TargetCategory:  model.CategoryGarment,
		ResultCategory:  model.CategorySelfPhoto,
		ResultPrefix:    "try-on",
		Prompt: func(style string) string {
			if style == "" {
				return tryOnPrompt
			}
			return tryOnPrompt + " Additional instructions: " + style
		},
	}
}

// CatalogConfig pairs a mannequin with a product and saves results into
// the mannequin history.
func CatalogConfig() Config {
	return Config{
		SubjectCategory: model.CategoryMannequin,
		TargetCategory:  model.CategoryProduct,
		ResultCategory:  model.CategoryMannequin,
		ResultPrefix:    "catalog",
		Prompt: func(style string) string {
			if style == "" {
				style = defaultCatalogStyle
			}
			return catalogPrompt + " Catalog style: " + style
		},
	}
}
