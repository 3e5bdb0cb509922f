package render

import (
	"log"
	"unsafe"

	"FoliageForge/cliente/internal/assets"
	"FoliageForge/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Brush é o pincel desenhado sob o cursor.
type Brush struct {
	Center util.Vec3
	Radius float64
	Erase  bool
}

type Renderer struct {
	// Shaders e Uniforms
	FoliageShader rl.Shader
	TerrainShader rl.Shader

	foliageTimeLoc   int32
	foliageWindLoc   int32
	foliageCamPosLoc int32
	terrainCamPosLoc int32

	Textures map[string]rl.Texture2D

	// Modelos 3D carregados por arquivo
	Models3D map[string]rl.Model

	// Gerenciador de Assets (JSON config)
	AssetMgr *assets.Manager

	// Sistema de GPU Instancing, um componente por Store da réplica
	Instancer *Instancer

	foliage      map[string]foliageModel
	ground       rl.Model
	groundExtent float32

	// Instâncias desenhadas no último frame
	LastDrawn int
}

// NewRenderer cria um novo renderizador. groundExtent é a meia largura do terreno.
func NewRenderer(configDir string, groundExtent float32) *Renderer {
	r := &Renderer{
		Textures:     make(map[string]rl.Texture2D),
		Models3D:     make(map[string]rl.Model),
		Instancer:    NewInstancer(),
		foliage:      make(map[string]foliageModel),
		groundExtent: groundExtent,
	}

	// Inicializar o Gerenciador de Assets (JSON)
	mgr, err := assets.NewManager(configDir)
	if err != nil {
		log.Printf("[Renderer] AVISO: Asset Manager não inicializado, usando primitivas: %v", err)
	} else {
		r.AssetMgr = mgr
		log.Printf("[Renderer] Asset Manager carregado com %d entradas", len(mgr.GetAllFoliageMeshes()))
	}

	// Tenta carregar os Shaders Customizados
	if rl.IsWindowReady() {
		r.FoliageShader = rl.LoadShaderFromMemory(foliageInstancedVertexShader, foliageFragmentShader)
		r.TerrainShader = rl.LoadShaderFromMemory(terrainVertexShader, terrainFragmentShader)

		// Registrar localizações de uniforms padrão para que Raylib preencha automaticamente
		// Locs é um ponteiro bruto (*int32) que aponta para um array em C (32 ints)
		locsF := unsafe.Slice(r.FoliageShader.Locs, 32)
		locsF[rl.ShaderLocMatrixMvp] = rl.GetShaderLocation(r.FoliageShader, "mvp")
		locsF[rl.ShaderLocMatrixModel] = rl.GetShaderLocationAttrib(r.FoliageShader, "instanceTransform")
		locsF[rl.ShaderLocMapDiffuse] = rl.GetShaderLocation(r.FoliageShader, "texture0")
		locsF[rl.ShaderLocColorDiffuse] = rl.GetShaderLocation(r.FoliageShader, "colDiffuse")

		locsT := unsafe.Slice(r.TerrainShader.Locs, 32)
		locsT[rl.ShaderLocMatrixModel] = rl.GetShaderLocation(r.TerrainShader, "matModel")
		locsT[rl.ShaderLocColorDiffuse] = rl.GetShaderLocation(r.TerrainShader, "colDiffuse")

		r.foliageTimeLoc = rl.GetShaderLocation(r.FoliageShader, "time")
		r.foliageWindLoc = rl.GetShaderLocation(r.FoliageShader, "windStrength")
		r.foliageCamPosLoc = rl.GetShaderLocation(r.FoliageShader, "camPos")
		r.terrainCamPosLoc = rl.GetShaderLocation(r.TerrainShader, "camPos")

		r.ground = rl.LoadModelFromMesh(rl.GenMeshPlane(groundExtent*2, groundExtent*2, 1, 1))
		mat := getModelMaterial(r.ground)
		mat.Shader = r.TerrainShader
		mat.GetMap(rl.MapDiffuse).Color = rl.NewColor(96, 118, 72, 255)
		unsafe.Slice(r.ground.Materials, r.ground.MaterialCount)[0] = mat
	}

	return r
}

func modelMeshes(model rl.Model) []rl.Mesh {
	return unsafe.Slice(model.Meshes, model.MeshCount)
}

// BindFoliage implementa ModelSource: carrega sob demanda e ajusta o vento.
func (r *Renderer) BindFoliage(mesh string) (rl.Mesh, rl.Material, bool) {
	fm, ok := r.foliage[mesh]
	if !ok {
		fm = r.loadFoliageModel(mesh)
		r.foliage[mesh] = fm
	}
	if fm.ok && r.FoliageShader.ID != 0 {
		rl.SetShaderValue(r.FoliageShader, r.foliageWindLoc, []float32{fm.wind}, rl.ShaderUniformFloat)
	}
	return fm.mesh, fm.material, fm.ok
}

// Draw renderiza o terreno, as instâncias e o pincel.
func (r *Renderer) Draw(camera3d rl.Camera3D, brush *Brush) {
	camPos := camera3d.Position

	// Update da variavel global de tempo nos shaders
	timeVal := float32(rl.GetTime())
	if r.FoliageShader.ID != 0 {
		rl.SetShaderValue(r.FoliageShader, r.foliageTimeLoc, []float32{timeVal}, rl.ShaderUniformFloat)
		rl.SetShaderValue(r.FoliageShader, r.foliageCamPosLoc, []float32{camPos.X, camPos.Y, camPos.Z}, rl.ShaderUniformVec3)
	}
	if r.TerrainShader.ID != 0 {
		rl.SetShaderValue(r.TerrainShader, r.terrainCamPosLoc, []float32{camPos.X, camPos.Y, camPos.Z}, rl.ShaderUniformVec3)
	}

	// PASS 1: TERRENO
	if r.ground.MeshCount > 0 {
		rl.DrawModel(r.ground, rl.Vector3{}, 1.0, rl.White)
	}

	// PASS 2: FOLIAGE (GPU INSTANCING, 1 draw call por Store)
	r.LastDrawn = r.Instancer.DrawAll(camera3d, r)

	// PASS 3: PINCEL
	if brush != nil {
		color := rl.Yellow
		if brush.Erase {
			color = rl.Red
		}
		center := ToRaylib(brush.Center)
		center.Y += 1
		rl.DrawCircle3D(center, float32(brush.Radius), rl.Vector3{X: 1}, 90, color)
		rl.DrawSphere(center, 4, color)
	}
}

// GroundHit intersecta o raio do mouse com o terreno (plano z=0 do mundo).
func (r *Renderer) GroundHit(ray rl.Ray) (util.Vec3, bool) {
	e := r.groundExtent
	collision := rl.GetRayCollisionQuad(ray,
		rl.Vector3{X: -e, Z: -e},
		rl.Vector3{X: -e, Z: e},
		rl.Vector3{X: e, Z: e},
		rl.Vector3{X: e, Z: -e},
	)
	if !collision.Hit {
		return util.Vec3{}, false
	}
	return FromRaylib(collision.Point), true
}

func (r *Renderer) Unload() {
	for _, m := range r.Models3D {
		rl.UnloadModel(m)
	}
	r.Models3D = make(map[string]rl.Model)
	for _, t := range r.Textures {
		rl.UnloadTexture(t)
	}
	r.Textures = make(map[string]rl.Texture2D)
	if r.ground.MeshCount > 0 {
		rl.UnloadModel(r.ground)
	}
	if r.FoliageShader.ID != 0 {
		rl.UnloadShader(r.FoliageShader)
	}
	if r.TerrainShader.ID != 0 {
		rl.UnloadShader(r.TerrainShader)
	}
}
