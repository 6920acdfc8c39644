// Package gateway — шлюз push-уведомлений.
//
// Воркеры и sweep'ы не доставляют push сами: они передают готовое
// уведомление (получатель, заголовок, текст, данные) внешнему сервису
// доставки. Основная реализация публикует уведомления в RabbitMQ,
// откуда их забирает сервис доставки; для тестов есть Recorder.
//
// Контракт: Send возвращает ошибку для одного получателя, и вызывающая
// сторона сама решает, изолировать её (fan-out) или поднять наверх.
package gateway
