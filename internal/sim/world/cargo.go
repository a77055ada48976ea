package world

import (
	"cargohold.ai/internal/sim/cargo"
	"cargohold.ai/internal/sim/interact"
)

func (w *World) packageWillHandApply(req interact.Request) bool {
	o := w.objects[req.Target]
	return o != nil && !o.held() && cargo.CanUnwrapByHand(req)
}

func (w *World) packageWillInventoryApply(req interact.Request) bool {
	return cargo.CanUnwrapInInventory(req)
}

func (w *World) packageStartUnwrap(req interact.Request) {
	w.startProgress(w.players[req.Performer], ProgressUnwrap, req, w.cfg.Wrapping.UnwrapProgressTicks)
}

func (w *World) finishUnwrap(p *Player, o *Object) {
	if o == nil || o.Package == nil {
		return
	}
	pkg := o.Package
	if pkg.DefaultContent == "" {
		pkg.DefaultContent = w.cfg.Wrapping.DefaultContents[pkg.Type.String()]
	}
	w.audit(p.ID, "UNWRAP", o, pkg.Type.String(), "", "")
	if content := pkg.Unwrap(w.env()); content == "" {
		w.examine(p.ID, "The package is empty.")
	}
}
