// Package cargo implements wrapped packages: an item hiding its content until a player
// tears it open.
package cargo

import (
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

const UnwrapSound = "PAPER_TEAR"

// Env is what unwrapping needs from the world.
type Env interface {
	ObjectPos(id string) (mathx.Vec2i, bool)
	Exists(id string) bool
	// SpawnHidden creates an object of kind at pos that is not yet visible.
	SpawnHidden(kind string, pos mathx.Vec2i) string
	Despawn(id string)
	SetVisible(id string, visible bool)
	PlaceAt(id string, pos mathx.Vec2i)
	SlotOf(id string) (holder, slot string, ok bool)
	PutInSlot(holder, slot, id string) bool
	PlaySound(sound string, pos mathx.Vec2i)
}

type Package struct {
	ID     string
	Type   PackageType
	Sprite int
	Size   Size

	// ContentID is the hidden object inside; DefaultContent is the kind generated when
	// the package was mapped without an explicit content.
	ContentID      string
	DefaultContent string
}

func (p *Package) SetSprite(t PackageType) {
	if !t.Valid() {
		return
	}
	p.Sprite = int(t)
}

func (p *Package) SetSize(s Size) {
	if !s.Valid() {
		return
	}
	p.Size = s
}

// OnSpawn applies the configured package type to mapped packages only.
func (p *Package) OnSpawn(mapped bool) {
	if !mapped {
		return
	}
	p.SetSprite(p.Type)
}

// GetOrGenerateContent returns the stored content, generating it if needed.
// An empty result means the package is empty.
func (p *Package) GetOrGenerateContent(env Env) string {
	if p.ContentID != "" && env.Exists(p.ContentID) {
		return p.ContentID
	}
	p.ContentID = ""
	if p.DefaultContent == "" {
		return ""
	}
	pos, _ := env.ObjectPos(p.ID)
	p.ContentID = env.SpawnHidden(p.DefaultContent, pos)
	return p.ContentID
}

// Unwrap reveals the content. A package lying in the world is replaced by its content on
// the same tile; a package held in a slot hands that slot to its content.
func (p *Package) Unwrap(env Env) string {
	pos, _ := env.ObjectPos(p.ID)
	env.PlaySound(UnwrapSound, pos)

	content := p.GetOrGenerateContent(env)
	if content == "" {
		return ""
	}
	env.SetVisible(content, true)
	env.PlaceAt(content, pos)
	p.ContentID = ""

	holder, slot, inSlot := env.SlotOf(p.ID)
	env.Despawn(p.ID)
	if inSlot {
		env.PutInSlot(holder, slot, content)
	}
	return content
}

// CanUnwrapByHand: clicking the package in the world with an empty hand on harm intent.
func CanUnwrapByHand(req interact.Request) bool {
	return req.HandObject == "" && req.Intent == interact.IntentHarm
}

// CanUnwrapInInventory: clicking the package in a slot with nothing used on it, harm intent.
func CanUnwrapInInventory(req interact.Request) bool {
	return req.UsedObject == "" && req.Intent == interact.IntentHarm
}
