// Package sweep содержит периодические рассылки, запускаемые
// по времени, а не через очередь jobs: ежемесячное напоминание
// об оплате и напоминание перед началом события.
//
// Sweep'ы не имеют продюсера — триггером служит собственный тик.
// Идемпотентность при повторном запуске обеспечивается по-разному:
// у pre-event sweep'а — флагом reminder_sent на событии, у
// ежемесячного — расписанием и сторожем "последний отработанный
// месяц" в памяти процесса. Поэтому в многопроцессной развёртке
// sweep'ы должен запускать только лидер (см. cmd/relay-worker).
package sweep
