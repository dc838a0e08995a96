package topics

const (
	// Falhas de escrita que esgotaram as tentativas (espelho do arquivo de fallback)
	GameResultsDLQ = "game_results_dlq"

	// Canal Redis Pub/Sub com os resultados persistidos
	GameResultsBroadcast = "game_results_broadcast"
)
