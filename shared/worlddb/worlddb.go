// Package worlddb persiste o mundo de foliage num banco SQLite: um registro
// por nível (arquivo binário do ator), um por tipo de foliage e um por corpo da cena.
package worlddb

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/scene"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LevelModel guarda o ator de foliage de um nível.
type LevelModel struct {
	Name      string `gorm:"primaryKey"`
	Data      []byte // foliage.Actor.MarshalBinary
	Instances int
	UpdatedAt time.Time
}

// FoliageTypeModel guarda as configurações de um tipo em JSON.
type FoliageTypeModel struct {
	Name      string `gorm:"primaryKey"`
	Settings  []byte
	UpdatedAt time.Time
}

// BodyModel guarda um corpo da cena em JSON.
type BodyModel struct {
	ID    string `gorm:"primaryKey"` // "nível/nome"
	Level string `gorm:"index"`
	Data  []byte
}

// WorldMetadata armazena informações globais do mundo no banco
type WorldMetadata struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// CurrentFormatVersion é a versão gravada em WorldMetadata.
const CurrentFormatVersion = 1

// ErrNotInitialized é retornado quando o banco não foi aberto.
var ErrNotInitialized = errors.New("banco de dados não inicializado")

// DB é a conexão com o banco de um mundo.
type DB struct {
	db   *gorm.DB
	Path string
}

// Open abre (ou cria) o banco do mundo em dir e roda as migrações.
func Open(dir, worldName string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, fmt.Sprintf("%s.ff", worldName))

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no SQLite: %w", err)
	}
	if err := db.AutoMigrate(&LevelModel{}, &FoliageTypeModel{}, &BodyModel{}, &WorldMetadata{}); err != nil {
		return nil, fmt.Errorf("falha na migração do banco: %w", err)
	}

	var meta WorldMetadata
	if err := db.Where(&WorldMetadata{Key: "FormatVersion"}).First(&meta).Error; err == nil {
		v, _ := strconv.Atoi(meta.Value)
		if v > CurrentFormatVersion {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
			return nil, fmt.Errorf("%s: formato %d mais novo que o suportado (%d)", dbPath, v, CurrentFormatVersion)
		}
	}

	db.Save(&WorldMetadata{Key: "FormatVersion", Value: fmt.Sprint(CurrentFormatVersion)})
	db.Save(&WorldMetadata{Key: "WorldName", Value: worldName})

	log.Printf("[Persistence] Banco de dados SQLite aberto: %s", dbPath)
	return &DB{db: db, Path: dbPath}, nil
}

// Close fecha a conexão.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Metadata lê um valor de WorldMetadata.
func (d *DB) Metadata(key string) (string, error) {
	if d == nil || d.db == nil {
		return "", ErrNotInitialized
	}
	var meta WorldMetadata
	if err := d.db.Where(&WorldMetadata{Key: key}).First(&meta).Error; err != nil {
		return "", err
	}
	return meta.Value, nil
}

// SaveTypes grava (ou atualiza) os tipos de foliage.
func (d *DB) SaveTypes(types []*foliage.FoliageType) error {
	if d == nil || d.db == nil {
		return ErrNotInitialized
	}
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, ft := range types {
			b, err := json.Marshal(ft)
			if err != nil {
				return fmt.Errorf("tipo %q: %w", ft.Name, err)
			}
			if err := tx.Save(&FoliageTypeModel{Name: ft.Name, Settings: b}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTypes lê todos os tipos gravados.
func (d *DB) LoadTypes() (map[string]*foliage.FoliageType, error) {
	if d == nil || d.db == nil {
		return nil, ErrNotInitialized
	}
	var models []FoliageTypeModel
	if err := d.db.Find(&models).Error; err != nil {
		return nil, err
	}
	types := make(map[string]*foliage.FoliageType, len(models))
	for _, m := range models {
		ft := foliage.NewFoliageType(m.Name, "", foliage.TypeAsset)
		if err := json.Unmarshal(m.Settings, ft); err != nil {
			log.Printf("[Persistence] AVISO: tipo %q ilegível, ignorando: %v", m.Name, err)
			continue
		}
		ft.Name = m.Name
		types[m.Name] = ft
	}
	return types, nil
}

func saveActor(tx *gorm.DB, a *foliage.Actor) error {
	data, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("nível %s: %w", a.Level, err)
	}
	n := 0
	for _, st := range a.Stores() {
		n += st.Len()
	}
	return tx.Save(&LevelModel{Name: a.Level, Data: data, Instances: n}).Error
}

// SaveLevels grava os níveis listados. Níveis sem ator no mundo são apagados do banco.
func (d *DB) SaveLevels(w *foliage.World, levels []string) error {
	if d == nil || d.db == nil {
		return ErrNotInitialized
	}
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, level := range levels {
			a := w.ActorForLevel(level, false)
			if a == nil {
				if err := tx.Delete(&LevelModel{}, "name = ?", level).Error; err != nil {
					return err
				}
				continue
			}
			if err := saveActor(tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveWorld grava todos os níveis do mundo e remove os que não existem mais.
func (d *DB) SaveWorld(w *foliage.World) error {
	if d == nil || d.db == nil {
		return ErrNotInitialized
	}
	start := time.Now()
	actors := w.Actors()
	err := d.db.Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(actors))
		for _, a := range actors {
			if err := saveActor(tx, a); err != nil {
				return err
			}
			names = append(names, a.Level)
		}
		stale := tx.Where("1 = 1")
		if len(names) > 0 {
			stale = tx.Where("name NOT IN ?", names)
		}
		return stale.Delete(&LevelModel{}).Error
	})
	if err != nil {
		log.Printf("[Persistence] ERRO ao salvar mundo: %v", err)
		return err
	}
	log.Printf("[Persistence] %d níveis salvos em %v", len(actors), time.Since(start))
	return nil
}

// LoadWorld reconstrói o mundo: tipos, atores de cada nível e reparos pós-carga.
// bases resolve as bases pelo nome; pode ser nil.
func (d *DB) LoadWorld(cfg foliage.ActorConfig, tracer foliage.Tracer, bases func(level, name string) foliage.Base) (*foliage.World, map[string]*foliage.FoliageType, error) {
	if d == nil || d.db == nil {
		return nil, nil, ErrNotInitialized
	}
	types, err := d.LoadTypes()
	if err != nil {
		return nil, nil, err
	}

	var models []LevelModel
	if err := d.db.Order("name").Find(&models).Error; err != nil {
		return nil, nil, err
	}

	w := foliage.NewWorld(cfg, tracer)
	opts := foliage.LoadOptions{
		Config: cfg,
		Types:  func(name string) *foliage.FoliageType { return types[name] },
		Bases:  bases,
	}
	for _, m := range models {
		a, err := foliage.UnmarshalActor(m.Data, opts)
		if err != nil {
			log.Printf("[Persistence] AVISO: nível %s corrompido, ignorando: %v", m.Name, err)
			continue
		}
		w.RegisterLoadedActor(a)
	}
	w.PostLoad()

	log.Printf("[Persistence] Mundo carregado: %d níveis, %d tipos", len(models), len(types))
	return w, types, nil
}

// SaveScene grava todos os corpos da cena, substituindo os anteriores.
func (d *DB) SaveScene(s *scene.Scene) error {
	if d == nil || d.db == nil {
		return ErrNotInitialized
	}
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&BodyModel{}).Error; err != nil {
			return err
		}
		for _, b := range s.Bodies() {
			data, err := json.Marshal(b.Def())
			if err != nil {
				return fmt.Errorf("corpo %s: %w", b, err)
			}
			if err := tx.Create(&BodyModel{ID: b.String(), Level: b.BaseLevel(), Data: data}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadScene adiciona à cena os corpos gravados. Retorna quantos foram criados.
func (d *DB) LoadScene(s *scene.Scene) (int, error) {
	if d == nil || d.db == nil {
		return 0, ErrNotInitialized
	}
	var models []BodyModel
	if err := d.db.Find(&models).Error; err != nil {
		return 0, err
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })

	n := 0
	for _, m := range models {
		var def scene.BodyDef
		if err := json.Unmarshal(m.Data, &def); err != nil {
			log.Printf("[Persistence] AVISO: corpo %s ilegível: %v", m.ID, err)
			continue
		}
		if _, err := s.Add(def); err != nil {
			log.Printf("[Persistence] AVISO: %v", err)
			continue
		}
		n++
	}
	return n, nil
}
