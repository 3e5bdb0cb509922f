package render

import (
	"log"

	"FoliageForge/cliente/internal/assets"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// foliageModel é o mesh e material já na GPU para um mesh de foliage.
type foliageModel struct {
	mesh     rl.Mesh
	material rl.Material
	wind     float32
	ok       bool
}

// loadFoliageModel carrega o modelo configurado para mesh, ou gera a primitiva.
func (r *Renderer) loadFoliageModel(mesh string) foliageModel {
	entry := r.AssetMgr.GetFoliageMesh(mesh)

	var fm foliageModel
	if entry.File != "" {
		model, ok := r.loadSingleModel(entry.File, "assets/models/"+entry.File)
		if ok {
			fm.mesh = modelMeshes(model)[0]
			fm.material = getModelMaterial(model)
			fm.ok = true
		}
	}
	if !fm.ok {
		fm.mesh = generatePrimitive(entry)
		fm.material = rl.LoadMaterialDefault()
		fm.ok = fm.mesh.VertexCount > 0
	}
	if !fm.ok {
		log.Printf("[Renderer] FALHA ao montar modelo para %s", mesh)
		return fm
	}

	if r.FoliageShader.ID != 0 {
		fm.material.Shader = r.FoliageShader
	}
	if entry.Color != nil {
		c := entry.Color
		fm.material.GetMap(rl.MapDiffuse).Color = rl.NewColor(c.R, c.G, c.B, c.A)
	}
	if entry.Texture != "" {
		if tex, ok := r.loadSingleTexture(entry.Texture, "assets/textures/"+entry.Texture); ok {
			rl.SetMaterialTexture(&fm.material, rl.MapDiffuse, tex)
		}
	}
	if entry.Wind {
		fm.wind = 0.15
	}
	log.Printf("[Renderer] Modelo de foliage pronto: %s (arquivo=%q, primitiva=%q)", mesh, entry.File, entry.Primitive)
	return fm
}

// generatePrimitive gera a geometria da entrada.
func generatePrimitive(entry assets.MeshEntry) rl.Mesh {
	size := entry.Size
	if size <= 0 {
		size = assets.DefaultEntry.Size
	}
	switch entry.Primitive {
	case assets.PrimitiveSphere:
		return rl.GenMeshHemiSphere(size/2, 8, 12)
	case assets.PrimitiveCube:
		// Centrado na origem: metade fica abaixo do chão
		return rl.GenMeshCube(size, size, size)
	default:
		return rl.GenMeshCone(size/4, size, 6)
	}
}

func (r *Renderer) loadSingleTexture(name, path string) (rl.Texture2D, bool) {
	if tex, ok := r.Textures[name]; ok {
		return tex, true
	}
	tex := rl.LoadTexture(path)
	if tex.ID == 0 {
		log.Printf("[Renderer] FALHA ao carregar textura: %s", path)
		return tex, false
	}
	rl.GenTextureMipmaps(&tex)
	rl.SetTextureFilter(tex, rl.FilterTrilinear)
	rl.SetTextureWrap(tex, rl.WrapRepeat)
	r.Textures[name] = tex
	log.Printf("[Renderer] Textura carregada: %s", path)
	return tex, true
}

func (r *Renderer) loadSingleModel(name, path string) (rl.Model, bool) {
	if model, ok := r.Models3D[name]; ok {
		return model, true
	}
	model := rl.LoadModel(path)
	if model.MeshCount == 0 {
		log.Printf("[Renderer] FALHA ao carregar modelo: %s", path)
		return model, false
	}
	// Usamos o 'name' (campo 'file' do JSON) como chave
	r.Models3D[name] = model
	log.Printf("[Renderer] Modelo carregado: %s (Key: %s)", path, name)
	return model, true
}
