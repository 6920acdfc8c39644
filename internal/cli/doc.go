// Package cli реализует операторский инструмент командной строки Relay.
//
// # Обзор
//
// CLI работает напрямую с базой данных — у подсистемы фоновых задач
// нет собственного HTTP API, единственная точка координации — таблица
// jobs. Инструмент используется для ручной инспекции очереди
// (просмотр упавших jobs, их ошибок) и административных действий:
// повторный запуск FAILED job, постановка job вручную.
//
// # Ключевые компоненты
//
// ## Store
//
// Обёртка над пулом соединений и репозиториями для команд CLI.
// Создаётся лениво после парсинга PersistentFlags.
//
// ## Output
//
// Форматирование вывода. Два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr, поэтому вывод
// можно отправлять в pipe: relay jobs list --json | jq .
//
// ## Commands
//
//   - jobs: list, show, requeue
//   - enqueue: expand, notify, settle
//   - series: просмотр occurrences серии по series_id
package cli
