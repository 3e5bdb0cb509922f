package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"FoliageForge/shared/config"
	"FoliageForge/shared/foliage"
	"FoliageForge/shared/metrics"
	"FoliageForge/shared/proto/fnet"
	"FoliageForge/shared/scene"
	"FoliageForge/shared/util"
	"FoliageForge/shared/worlddb"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrUnknownFoliageType é retornado para pedidos com tipo inexistente.
	ErrUnknownFoliageType = errors.New("tipo de foliage desconhecido")
	// ErrInvalidBrush é retornado para pincéis com valores não finitos ou negativos.
	ErrInvalidBrush = errors.New("pincel inválido")
)

// Server é o dono do mundo de foliage. Todas as mutações passam por mu;
// os eventos gerados viram frames que o hub distribui na mesma ordem.
type Server struct {
	mu      sync.Mutex
	cfg     config.Config
	db      *worlddb.DB
	scene   *scene.Scene
	world   *foliage.World
	painter *foliage.Painter
	types   map[string]*foliage.FoliageType

	batch    *fnet.Batch
	dirty    *util.UniqueQueue[string, time.Time]
	recorder *metrics.Recorder
	hub      *Hub
}

// defaultTypes são os tipos criados num mundo novo.
func defaultTypes() []*foliage.FoliageType {
	grass := foliage.NewFoliageType("Grass", "SM_Grass", foliage.TypeAsset)
	grass.ScaleX = util.FloatInterval{Min: 0.8, Max: 1.2}
	grass.ZOffset = util.FloatInterval{Min: -2, Max: 0}

	fern := foliage.NewFoliageType("Fern", "SM_Fern", foliage.TypeAsset)
	fern.Density = 40
	fern.Radius = 30
	fern.GroundSlopeAngle = util.FloatInterval{Min: 0, Max: 30}

	rock := foliage.NewFoliageType("Rock", "SM_Rock", foliage.TypeAsset)
	rock.Density = 5
	rock.Radius = 120
	rock.Scaling = foliage.ScalingFree
	rock.ScaleX = util.FloatInterval{Min: 0.5, Max: 2}
	rock.ScaleY = util.FloatInterval{Min: 0.5, Max: 2}
	rock.ScaleZ = util.FloatInterval{Min: 0.5, Max: 1}
	rock.AlignToNormal = false
	rock.BlockingRadius = 60

	return []*foliage.FoliageType{grass, fern, rock}
}

// defaultTerrain é o chão do nível persistente de um mundo novo.
func defaultTerrain() scene.BodyDef {
	return scene.BodyDef{
		Placement: scene.Placement{Level: foliage.PersistentLevel, Name: "Terrain", Kind: foliage.BaseStatic, Transform: util.IdentityTransform()},
		Shape:     scene.Shape{Kind: scene.ShapeBox, Extent: util.Vec3{50000, 50000, 0}},
		Surface:   scene.Surface{Flags: foliage.HitBlocking},
	}
}

// NewServer carrega (ou cria) o mundo do banco.
func NewServer(cfg config.Config, db *worlddb.DB, reg prometheus.Registerer) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		db:       db,
		scene:    scene.New(),
		batch:    &fnet.Batch{},
		dirty:    util.NewUniqueQueue[string, time.Time](),
		recorder: metrics.NewRecorder(reg),
	}

	n, err := db.LoadScene(s.scene)
	if err != nil {
		return nil, fmt.Errorf("carregar cena: %w", err)
	}
	if n == 0 {
		log.Println("[Server] Cena vazia, criando terreno padrão")
		s.scene.MustAdd(defaultTerrain())
		if err := db.SaveScene(s.scene); err != nil {
			return nil, err
		}
	}

	actorCfg := foliage.ActorConfig{CellBits: cfg.HashCellBits}
	world, types, err := db.LoadWorld(actorCfg, s.scene, s.scene.ResolveBase)
	if err != nil {
		return nil, fmt.Errorf("carregar mundo: %w", err)
	}
	if len(types) == 0 {
		log.Println("[Server] Nenhum tipo de foliage salvo, registrando os padrões")
		for _, ft := range defaultTypes() {
			types[ft.Name] = ft
		}
		if err := db.SaveTypes(s.sortedTypes(types)); err != nil {
			return nil, err
		}
	}
	s.world = world
	s.types = types
	s.painter = foliage.NewPainter(world, cfg.Seed)
	s.painter.PaintDensity = cfg.BrushDensity

	s.scene.OnMoved = world.OnBaseMoved
	s.scene.OnRemoved = world.OnBaseDeleted

	world.AddListener(s.batch)
	world.AddListener(s.recorder)
	world.AddListener(foliage.ChangeListenerFunc(func(ev foliage.ChangeEvent) {
		s.dirty.Enqueue(ev.Level, time.Now())
	}))
	s.recorder.Sync(world)

	log.Printf("[Server] Mundo pronto: %d níveis, %d tipos, %d instâncias", len(world.Actors()), len(types), s.instanceCount())
	return s, nil
}

func (s *Server) sortedTypes(types map[string]*foliage.FoliageType) []*foliage.FoliageType {
	out := make([]*foliage.FoliageType, 0, len(types))
	for _, ft := range types {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) instanceCount() int {
	n := 0
	for _, a := range s.world.Actors() {
		for _, st := range a.Stores() {
			n += st.Len()
		}
	}
	return n
}

// InstanceCount retorna o total de instâncias do mundo.
func (s *Server) InstanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceCount()
}

// status monta a mensagem SERVER_STATUS. Chamar com mu travado.
func (s *Server) status(message string) []byte {
	return fnet.Wrap(fnet.MsgServerStatus, &fnet.ServerStatus{
		WorldName: s.cfg.WorldName,
		Message:   message,
		Instances: int64(s.instanceCount()),
	})
}

// snapshot monta o estado completo. Chamar com mu travado.
func (s *Server) snapshot() ([]byte, error) {
	var snap fnet.Snapshot
	for _, ft := range s.sortedTypes(s.types) {
		td, err := fnet.NewTypeDefinition(ft)
		if err != nil {
			return nil, err
		}
		snap.Types = append(snap.Types, td)
	}
	for _, a := range s.world.Actors() {
		data, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		snap.Actors = append(snap.Actors, data)
	}
	return fnet.Wrap(fnet.MsgSnapshot, &snap), nil
}

// Welcome registra conn no hub com o status e o snapshot atuais. Travar mu
// impede que um delta já contido no snapshot chegue depois dele.
func (s *Server) Welcome(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	s.hub.Join(conn, [][]byte{s.status("Conectado ao Servidor FoliageForge"), snap})
	return nil
}

// apply executa fn sob o lock e distribui os eventos gerados.
func (s *Server) apply(operation string, fn func() (int, error)) (int, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := fn()
	frames := s.batch.Flush()
	s.recorder.Observe(operation, err == nil, time.Since(start))
	if s.hub != nil {
		s.hub.Broadcast(frames)
	}
	return n, err
}

func (s *Server) foliageType(name string) (*foliage.FoliageType, error) {
	ft := s.types[name]
	if ft == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFoliageType, name)
	}
	return ft, nil
}

// Paint pinta com o pincel do pedido. Retorna quantas instâncias foram criadas.
func (s *Server) Paint(req *fnet.BrushRequest) (int, error) {
	b, err := s.brushFor(req)
	if err != nil {
		return 0, err
	}
	return s.apply("paint", func() (int, error) {
		ft, err := s.foliageType(req.Type)
		if err != nil {
			return 0, err
		}
		count := b.count
		if count <= 0 {
			count = s.painter.TargetInstanceCount(ft, b.radius)
		}
		if count <= 0 {
			count = s.cfg.BrushCount
		}
		count = min(count, s.maxBrushCount())
		brush := util.Sphere{Center: req.Center, W: b.radius}
		return s.painter.AddInstancesForBrush(ft, brush, util.UpVector, count, b.pressure), nil
	})
}

// Erase apaga com o pincel do pedido. Retorna quantas instâncias foram removidas.
func (s *Server) Erase(req *fnet.BrushRequest) (int, error) {
	b, err := s.brushFor(req)
	if err != nil {
		return 0, err
	}
	return s.apply("erase", func() (int, error) {
		ft, err := s.foliageType(req.Type)
		if err != nil {
			return 0, err
		}
		return s.painter.RemoveInstancesForBrush(ft, util.Sphere{Center: req.Center, W: b.radius}, b.pressure), nil
	})
}

type brushParams struct {
	radius   float64
	pressure float64
	count    int
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Server) maxBrushCount() int {
	if s.cfg.MaxBrushCount > 0 {
		return s.cfg.MaxBrushCount
	}
	return max(s.cfg.BrushCount, 1) * 16
}

// brushFor valida o pedido e aplica padrões e limites. Roda antes do lock.
func (s *Server) brushFor(req *fnet.BrushRequest) (brushParams, error) {
	c := req.Center
	if !finite(c[0]) || !finite(c[1]) || !finite(c[2]) || !finite(req.Radius) || !finite(req.Pressure) {
		return brushParams{}, fmt.Errorf("%w: valores não finitos", ErrInvalidBrush)
	}
	if req.Radius < 0 || req.Pressure < 0 || req.Count < 0 {
		return brushParams{}, fmt.Errorf("%w: valores negativos", ErrInvalidBrush)
	}

	b := brushParams{radius: req.Radius, pressure: req.Pressure, count: req.Count}
	if b.radius == 0 {
		b.radius = s.cfg.BrushRadius
	}
	if s.cfg.MaxBrushRadius > 0 {
		b.radius = math.Min(b.radius, s.cfg.MaxBrushRadius)
	}
	if b.pressure == 0 {
		b.pressure = 1
	}
	b.pressure = math.Min(b.pressure, 1)
	b.count = min(b.count, s.maxBrushCount())
	return b, nil
}

// Save grava os níveis alterados desde o último salvamento.
func (s *Server) Save() error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	levels := s.dirty.Drain()
	if len(levels) == 0 {
		return nil
	}
	err := s.db.SaveLevels(s.world, levels)
	s.recorder.Observe("save", err == nil, time.Since(start))
	if err != nil {
		// Os níveis voltam para a fila e são tentados no próximo ciclo.
		for _, level := range levels {
			s.dirty.Enqueue(level, time.Now())
		}
		return err
	}
	log.Printf("[Persistence] %d níveis salvos em %v", len(levels), time.Since(start))
	return nil
}

// CheckInvariants valida todos os stores (modo debug).
func (s *Server) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.world.Actors() {
		for _, st := range a.Stores() {
			if err := st.CheckValid(); err != nil {
				return err
			}
		}
	}
	return nil
}
