// storage определяет контракты объектного хранилища и витрины для news-etl.
package storage

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/pribylovaa/news-etl/internal/storage ObjectStore,Warehouse

var (
	// ErrNotFound — объект отсутствует в бакете.
	ErrNotFound = errors.New("not found")
	// ErrStorageWrite — не удалось выложить файл (повторы исчерпаны).
	ErrStorageWrite = errors.New("storage write failed")
	// ErrSchemaInference — схему нельзя вывести: файл пуст или не читается.
	ErrSchemaInference = errors.New("schema inference failed")
	// ErrTableCreate — таблица не подготовлена: проверка существования
	// не удалась или DDL отклонён (права, ошибка DDL).
	ErrTableCreate = errors.New("table create failed")
	// ErrLoad — строки не загружены (повторы исчерпаны).
	ErrLoad = errors.New("load failed")
	// ErrSummaryCompute — пересчёт сводных таблиц не удался.
	ErrSummaryCompute = errors.New("summary compute failed")
	// ErrAlreadyLoaded — объект с этим ключом уже загружен. Не является сбоем.
	ErrAlreadyLoaded = errors.New("already loaded")
)

// ObjectSource — чтение выложенных объектов. Нужен витрине для вывода схемы и загрузки.
type ObjectSource interface {
	// Download сохраняет объект key в локальный файл localPath.
	// Если объекта нет — ErrNotFound.
	Download(ctx context.Context, key, localPath string) error
}

// ObjectStore — объектное хранилище, точка передачи между выгрузкой и загрузкой.
type ObjectStore interface {
	ObjectSource
	// Put публикует локальный файл под ключом key атомарно: объект либо
	// виден целиком, либо не виден вовсе. Возвращает размер объекта.
	Put(ctx context.Context, key, localPath string) (int64, error)
	// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
	Delete(ctx context.Context, key string) error
}

// Warehouse — аналитическая витрина.
type Warehouse interface {
	// TableExists сообщает, существует ли таблица.
	TableExists(ctx context.Context, table string) (bool, error)
	// CreateTableInferred создаёт таблицу по схеме выложенного файла key.
	// Ошибки: ErrSchemaInference, ErrTableCreate.
	CreateTableInferred(ctx context.Context, table, key string) error
	// CopyInto дописывает строки файла key в таблицу ровно один раз.
	// Повторная загрузка того же key — ErrAlreadyLoaded.
	CopyInto(ctx context.Context, table, key string) (int64, error)
	// ExecTx выполняет операторы в одной транзакции: все или ни одного.
	ExecTx(ctx context.Context, stmts ...string) error
}
