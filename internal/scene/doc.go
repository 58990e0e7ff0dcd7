// Package scene defines the renderer contract and the scene registry.
//
// A scene is a Renderer with an Init/Render/Cleanup lifecycle driven by
// the scheduler. Renderers are stateless values registered once at
// startup; anything that must survive between frames of one activation
// goes through the Context state bag. The built-in set (empty, fill,
// clock, bounce) covers blanking, diagnostics and simple ambient
// content without any external scene packs.
package scene
