// Package worker — циклы опроса очереди jobs и обработчики.
//
// На каждый kind запускается собственный периодический цикл: тик →
// атомарный claim не более одного job → диспетчеризация через реестр
// обработчиков под таймаутом выполнения → complete либо retryOrFail.
//
// Семантика — at-least-once: после сбоя, таймаута или shutdown job
// вернётся в очередь, поэтому каждый обработчик обязан быть
// идемпотентным. Финализация статуса отвязана от отмены контекста
// воркера, а jobs процессов, умерших между claim и финализацией,
// хранилище возвращает в очередь по устареванию updated_at.
// Координация между процессами идёт только через таблицу jobs
// (FOR UPDATE SKIP LOCKED в JobStore.ClaimNext); in-memory блокировок
// между воркерами нет.
package worker
