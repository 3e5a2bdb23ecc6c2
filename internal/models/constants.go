package models

const (
	// DefaultPageSize размер страницы истории бронирований по умолчанию
	DefaultPageSize = 10

	// DefaultState состояние выборки по умолчанию
	DefaultState = "ALL"

	// UserHeader заголовок с идентификатором пользователя
	UserHeader = "X-Sharer-User-Id"

	// ItemsCacheTTL время жизни кэша вещей в секундах
	ItemsCacheTTL = 10 * 60 // 10 минут

	// DefaultRelayQueueSize размер буфера ретранслятора событий
	DefaultRelayQueueSize = 256

	// DefaultExportMaxRows предел строк в выгрузке брони владельца
	DefaultExportMaxRows = 10000
)
