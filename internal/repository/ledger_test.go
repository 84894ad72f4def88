package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"
)

func setupLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", name)

	db, err := database.Connect(dsn, zerolog.Nop(), database.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	return NewLedger(db), db
}

func seedProducer(t *testing.T, l *Ledger, code string) *domain.Usuario {
	t.Helper()
	ctx := context.Background()

	tipo, err := l.Types.UserTypeByName(ctx, domain.RoleProductor)
	if errors.Is(err, ErrNotFound) {
		tipo = &domain.TipoUsuario{Tipo: domain.RoleProductor}
		require.NoError(t, l.Types.CreateUserType(ctx, tipo))
	} else {
		require.NoError(t, err)
	}

	c := code
	u := &domain.Usuario{NomUs: "user_" + code, PassUs: "x", Nombre: "Productor " + code, CodProductor: &c, TipoUs: tipo.IDTipo}
	require.NoError(t, l.Producers.Create(ctx, u))
	return u
}

func seedFileType(t *testing.T, l *Ledger, name string) *domain.TipoArchivo {
	t.Helper()
	ft := &domain.TipoArchivo{Tipo: name}
	require.NoError(t, l.Types.CreateFileType(context.Background(), ft))
	return ft
}

func TestProducerFindByCode_TrimsWhitespace(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")

	got, err := l.Producers.FindByCode(ctx, "  P001\t")
	require.NoError(t, err)
	assert.Equal(t, p.IDUsuario, got.IDUsuario)

	_, err = l.Producers.FindByCode(ctx, "P999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Producers.FindByCode(ctx, "   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProducerListByRoleType(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	seedProducer(t, l, "P001")
	seedProducer(t, l, "P002")

	admin := &domain.TipoUsuario{Tipo: domain.RoleAdmin}
	require.NoError(t, l.Types.CreateUserType(ctx, admin))
	require.NoError(t, l.Producers.Create(ctx, &domain.Usuario{NomUs: "root", PassUs: "x", Nombre: "Admin", TipoUs: admin.IDTipo}))

	producers, err := l.Producers.ListByRoleType(ctx, domain.RoleProductor)
	require.NoError(t, err)
	require.Len(t, producers, 2)
	assert.Equal(t, "P001", producers[0].Code())

	all, err := l.Producers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestProducerDelete(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")

	require.NoError(t, l.Producers.Delete(ctx, p.IDUsuario))
	assert.ErrorIs(t, l.Producers.Delete(ctx, p.IDUsuario), ErrNotFound)

	_, err := l.Producers.GetByID(ctx, p.IDUsuario)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKMLUpsert_KeepsRowIdentity(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := l.KMLs.Upsert(ctx, p.IDUsuario, "https://b.s3.r.amazonaws.com/P001/kml/a.kml", t0)
	require.NoError(t, err)

	ft := seedFileType(t, l, "Analisis")
	kmlID := first.IDKML
	require.NoError(t, l.Files.Create(ctx, &domain.Archivo{
		Nombre: "suelo.pdf", RutaDescarga: "https://b.s3.r.amazonaws.com/P001/Analisis/suelo.pdf",
		FechaSubida: t0, UsAsociado: p.IDUsuario, KMLAsociado: &kmlID, TipoArchivoID: ft.IDTipoArchivo,
	}))

	second, err := l.KMLs.Upsert(ctx, p.IDUsuario, "https://b.s3.r.amazonaws.com/P001/kml/b.kml", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.IDKML, second.IDKML)

	kmls, err := l.KMLs.ListWithFiles(ctx, p.IDUsuario)
	require.NoError(t, err)
	require.Len(t, kmls, 1)
	assert.Equal(t, "https://b.s3.r.amazonaws.com/P001/kml/b.kml", kmls[0].RutaArchivo)
	assert.True(t, kmls[0].FechaSubida.Equal(t0.Add(time.Hour)))
	require.Len(t, kmls[0].Archivos, 1)
	assert.Equal(t, "suelo.pdf", kmls[0].Archivos[0].Nombre)
}

func TestKML_OneRowPerProducer(t *testing.T) {
	l, db := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.KMLs.Upsert(ctx, p.IDUsuario, "https://b.s3.r.amazonaws.com/P001/kml/a.kml", t0)
	require.NoError(t, err)

	err = db.WithContext(ctx).Create(&domain.KML{
		RutaArchivo: "https://b.s3.r.amazonaws.com/P001/kml/b.kml", FechaSubida: t0, UsAsociado: p.IDUsuario,
	}).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func TestKMLUpsert_RetriesWhenInsertLosesRace(t *testing.T) {
	l, db := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// simulate a concurrent upload that inserts the row between our lookup
	// and our insert
	raced := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:kml_race", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "kml" {
			return
		}
		raced = true
		other := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true})
		if err := other.Exec(
			"INSERT INTO kml (ruta_archivo, fecha_subida, us_asociado) VALUES (?, ?, ?)",
			"https://b.s3.r.amazonaws.com/P001/kml/otro.kml", t0, p.IDUsuario,
		).Error; err != nil {
			_ = tx.AddError(err)
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove("test:kml_race") })

	got, err := l.KMLs.Upsert(ctx, p.IDUsuario, "https://b.s3.r.amazonaws.com/P001/kml/a.kml", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, raced)

	kmls, err := l.KMLs.ListWithFiles(ctx, p.IDUsuario)
	require.NoError(t, err)
	require.Len(t, kmls, 1)
	assert.Equal(t, got.IDKML, kmls[0].IDKML)
	assert.Equal(t, "https://b.s3.r.amazonaws.com/P001/kml/a.kml", kmls[0].RutaArchivo)
}

func TestKMLFindByProducer_NotFound(t *testing.T) {
	l, _ := setupLedger(t)
	p := seedProducer(t, l, "P001")

	_, err := l.KMLs.FindByProducer(context.Background(), p.IDUsuario)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileFindByName_FirstMatch(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p1 := seedProducer(t, l, "P001")
	p2 := seedProducer(t, l, "P002")
	ft := seedFileType(t, l, "Analisis")

	for _, p := range []*domain.Usuario{p1, p2} {
		require.NoError(t, l.Files.Create(ctx, &domain.Archivo{
			Nombre: "informe.pdf", RutaDescarga: p.Code() + "/Analisis/informe.pdf",
			UsAsociado: p.IDUsuario, TipoArchivoID: ft.IDTipoArchivo,
		}))
	}

	got, err := l.Files.FindByName(ctx, "informe.pdf")
	require.NoError(t, err)
	assert.Equal(t, p1.IDUsuario, got.UsAsociado)
	assert.Equal(t, "Analisis", got.TypeName())

	_, err = l.Files.FindByName(ctx, "nada.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileClassify(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")
	other := seedProducer(t, l, "P002")
	analisis := seedFileType(t, l, "Analisis")
	mapas := seedFileType(t, l, "Mapas")
	borrado := seedFileType(t, l, "Borrado")

	add := func(owner *domain.Usuario, name string, ft *domain.TipoArchivo) {
		require.NoError(t, l.Files.Create(ctx, &domain.Archivo{
			Nombre: name, RutaDescarga: owner.Code() + "/x/" + name,
			UsAsociado: owner.IDUsuario, TipoArchivoID: ft.IDTipoArchivo,
		}))
	}
	add(p, "a.pdf", analisis)
	add(p, "b.pdf", analisis)
	add(p, "m.png", mapas)
	add(p, "huerfano.doc", borrado)
	add(other, "ajeno.pdf", analisis)

	require.NoError(t, l.Types.DeleteFileType(ctx, borrado.IDTipoArchivo))

	all, err := l.Files.Classify(ctx, p.IDUsuario, "")
	require.NoError(t, err)
	assert.Len(t, all["Analisis"], 2)
	assert.Len(t, all["Mapas"], 1)
	require.Len(t, all[domain.UnknownFileType], 1)
	assert.Equal(t, "huerfano.doc", all[domain.UnknownFileType][0].Nombre)

	only, err := l.Files.Classify(ctx, p.IDUsuario, "Mapas")
	require.NoError(t, err)
	assert.Len(t, only, 1)
	assert.Len(t, only["Mapas"], 1)

	unknown, err := l.Files.Classify(ctx, p.IDUsuario, "NoExiste")
	require.NoError(t, err)
	assert.Equal(t, all, unknown)

	none, err := l.Files.Classify(ctx, 9999, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLedgerTransaction_RollsBack(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	p := seedProducer(t, l, "P001")
	ft := seedFileType(t, l, "Analisis")
	require.NoError(t, l.Files.Create(ctx, &domain.Archivo{
		Nombre: "a.pdf", RutaDescarga: "P001/Analisis/a.pdf", UsAsociado: p.IDUsuario, TipoArchivoID: ft.IDTipoArchivo,
	}))

	boom := errors.New("boom")
	err := l.Transaction(ctx, func(tx *Ledger) error {
		if err := tx.Files.DeleteByProducer(ctx, p.IDUsuario); err != nil {
			return err
		}
		if err := tx.Producers.Delete(ctx, p.IDUsuario); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	files, err := l.Files.ListByProducer(ctx, p.IDUsuario)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	_, err = l.Producers.GetByID(ctx, p.IDUsuario)
	assert.NoError(t, err)

	require.NoError(t, l.Transaction(ctx, func(tx *Ledger) error {
		if err := tx.Files.DeleteByProducer(ctx, p.IDUsuario); err != nil {
			return err
		}
		return tx.Producers.Delete(ctx, p.IDUsuario)
	}))
	_, err = l.Producers.GetByID(ctx, p.IDUsuario)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTypeRepository_UserTypes(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()

	ut := &domain.TipoUsuario{Tipo: "Tecnico"}
	require.NoError(t, l.Types.CreateUserType(ctx, ut))

	updated, err := l.Types.UpdateUserType(ctx, ut.IDTipo, "Agronomo")
	require.NoError(t, err)
	assert.Equal(t, "Agronomo", updated.Tipo)

	_, err = l.Types.UpdateUserType(ctx, 999, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	types, err := l.Types.ListUserTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Agronomo", types[0].Tipo)
}
