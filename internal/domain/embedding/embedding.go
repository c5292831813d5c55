// Package embedding turns garment photos into fixed-width feature vectors.
package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Embedder maps image bytes to a vector of Width() floats.
type Embedder interface {
	Embed(ctx context.Context, ref string, data []byte) ([]float64, error)
	Blank(ctx context.Context) ([]float64, error)
	Width() int
}

// ConvEmbedder runs images through a convolutional backbone.
type ConvEmbedder struct {
	backbone *Backbone

	blankOnce sync.Once
	blank     []float64
	blankErr  error
}

// New builds an embedder from backbone params.
func New(p BackboneParams) (*ConvEmbedder, error) {
	b, err := NewBackbone(p)
	if err != nil {
		return nil, err
	}
	return &ConvEmbedder{backbone: b}, nil
}

// Width returns the embedding width.
func (e *ConvEmbedder) Width() int { return e.backbone.Width() }

// Resolution returns the square input size images are resized to.
func (e *ConvEmbedder) Resolution() int { return e.backbone.Resolution() }

// Embed decodes, preprocesses and runs one image. ref only labels errors.
func (e *ConvEmbedder) Embed(ctx context.Context, ref string, data []byte) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	img, err := decode(ref, data)
	if err != nil {
		return nil, err
	}
	return e.backbone.Forward(preprocess(img, e.backbone.Resolution()))
}

// Blank returns the embedding of an all-white image. It is computed
// once; each call gets its own copy.
func (e *ConvEmbedder) Blank(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	e.blankOnce.Do(func() {
		res := e.backbone.Resolution()
		e.blank, e.blankErr = e.backbone.Forward(preprocess(blankImage(res), res))
	})
	if e.blankErr != nil {
		return nil, e.blankErr
	}
	return append([]float64(nil), e.blank...), nil
}
