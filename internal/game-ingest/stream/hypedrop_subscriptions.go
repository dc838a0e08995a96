package stream

// subscription é uma mensagem "subscribe" do protocolo graphql-transport-ws
type subscription struct {
	ID      string              `json:"id"`
	Type    string              `json:"type"`
	Payload subscriptionPayload `json:"payload"`
}

type subscriptionPayload struct {
	Variables     map[string]any `json:"variables"`
	Extensions    map[string]any `json:"extensions"`
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
}

const (
	queryUpdateWallet = "subscription OnUpdateWallet {\n  updateWallet {\n    wallet {\n      id\n      amount\n      name\n      __typename\n    }\n    walletChange {\n      id\n      type\n      externalId\n      valueChange\n      __typename\n    }\n    __typename\n  }\n}\n"

	queryUpdateSetting = "subscription OnUpdateSetting {\n  updateSetting {\n    setting {\n      id\n      key\n      value\n      __typename\n    }\n    __typename\n  }\n}\n"

	queryJackpotUpdate = "subscription OnJackpotUpdate($id: ID) {\n  updateJackpot(id: $id) {\n    jackpot {\n      ...ActiveJackpot\n      __typename\n    }\n    __typename\n  }\n}\n\nfragment ActiveJackpot on Jackpot {\n  id\n  winnerCount\n  totalValue\n  currency\n  deletedAt\n  scheduledAt\n  totalTickets\n  ticketsInfo {\n    minId\n    maxId\n    __typename\n  }\n  __typename\n}\n"

	queryCreateBoxOpening = "subscription OnCreateBoxOpening($ancestorBoxId: ID, $boxId: ID, $boxSlug: String, $minItemValue: Float) {\n  createBoxOpening(\n    ancestorBoxId: $ancestorBoxId\n    boxId: $boxId\n    boxSlug: $boxSlug\n    minItemValue: $minItemValue\n  ) {\n    boxOpening {\n      ...StreamBoxOpening\n      __typename\n    }\n    __typename\n  }\n}\n\nfragment StreamBoxOpening on BoxOpening {\n  id\n  boxItemId\n  createdAt\n  itemValue\n  box {\n    id\n    name\n    slug\n    iconUrl\n    price\n    currency\n    market {\n      id\n      slug\n      __typename\n    }\n    __typename\n  }\n  itemVariant {\n    id\n    name\n    brand\n    color\n    rarity\n    size\n    displayValue\n    currency\n    iconUrl\n    type\n    __typename\n  }\n  pvpGameId\n  user {\n    ...UserBadgeSimple\n    __typename\n  }\n  userItemId\n  roll {\n    value\n    __typename\n  }\n  __typename\n}\n\nfragment UserBadgeSimple on User {\n  id\n  displayName\n  avatar\n  rank\n  authentic\n  teamId\n  level\n  __typename\n}\n"

	queryCreatePvpGame = "subscription OnCreatePvpGame {\n  createPvpGame {\n    pvpGame {\n      ...PvpGameThumbnail\n      __typename\n    }\n    autoJoinedByBots\n    __typename\n  }\n}\n\nfragment PvpGameThumbnail on PvpGame {\n  id\n  type\n  status\n  minPlayers\n  maxPlayers\n  currency\n  updatedAt\n  totalBet\n  fastMode\n  brandSpin\n  initialBet\n  sponsoredInitialBet\n  sponsorPercentage\n  meetsSponsorRules\n  activeRound {\n    number\n    status\n    round {\n      roundId\n      __typename\n    }\n    __typename\n  }\n  userId\n  initialWinItemVariant {\n    id\n    name\n    brand\n    iconUrl\n    rarity\n    __typename\n  }\n  players {\n    ...PvpGameThumbnailPlayerFragment\n    __typename\n  }\n  rounds {\n    edges {\n      node {\n        ...PvpGameThumbnailRound\n        __typename\n      }\n      __typename\n    }\n    __typename\n  }\n  createdAt\n  strategy\n  isPrivate\n  mode\n  maxNumberOfPlayersInTeam\n  maxNumberOfTeams\n  teams {\n    userId\n    teamSelection\n    __typename\n  }\n  totalPayout\n  __typename\n}\n\nfragment PvpGameThumbnailRound on PvpRound {\n  id\n  status\n  bet\n  roundId\n  box {\n    id\n    iconUrl\n    backgroundImageUrl\n    __typename\n  }\n  __typename\n}\n\nfragment PvpGameThumbnailPlayerFragment on PvpGamePlayer {\n  user {\n    ...UserBadgeSimple\n    microphoneEnabled\n    __typename\n  }\n  userId\n  isPvpBot\n  timesWon\n  totalBet\n  totalPayout\n  totalProfit\n  __typename\n}\n\nfragment UserBadgeSimple on User {\n  id\n  displayName\n  avatar\n  rank\n  authentic\n  teamId\n  level\n  __typename\n}\n"

	queryUpdatePvpGame = "subscription OnUpdatePvpGameThumbnail($id: ID, $userId: ID) {\n  updatePvpGame(id: $id, userId: $userId) {\n    pvpGame {\n      id\n      activeRound {\n        number\n        status\n        round {\n          roundId\n          __typename\n        }\n        __typename\n      }\n      players {\n        ...PvpGameThumbnailPlayerFragment\n        __typename\n      }\n      status\n      totalBet\n      totalPayout\n      updatedAt\n      teams {\n        userId\n        teamSelection\n        __typename\n      }\n      isPrivate\n      __typename\n    }\n    autoJoinedByBots\n    __typename\n  }\n}\n\nfragment PvpGameThumbnailPlayerFragment on PvpGamePlayer {\n  user {\n    ...UserBadgeSimple\n    microphoneEnabled\n    __typename\n  }\n  userId\n  isPvpBot\n  timesWon\n  totalBet\n  totalPayout\n  totalProfit\n  __typename\n}\n\nfragment UserBadgeSimple on User {\n  id\n  displayName\n  avatar\n  rank\n  authentic\n  teamId\n  level\n  __typename\n}\n"
)

// Ordem fixa de registro; o site espera as assinaturas nesta sequência
var hypeDropSubscriptions = []subscription{
	newSubscription("5d4c0732-a3bb-4e6c-84c0-006f1e073434", "OnUpdateWallet", queryUpdateWallet, nil),
	newSubscription("ab19ca8f-6f31-442f-9836-4c7d70a75eaf", "OnUpdateSetting", queryUpdateSetting, nil),
	newSubscription("08555029-dadb-4c3c-aa4c-648e3b985972", "OnJackpotUpdate", queryJackpotUpdate, nil),
	newSubscription("eec46ebf-bfbb-4cb9-81f9-7e35a2d04d67", "OnCreateBoxOpening", queryCreateBoxOpening, map[string]any{"minItemValue": 10}),
	newSubscription("ffd5b621-f4b2-456f-b8c3-e4d669e191d6", "OnCreatePvpGame", queryCreatePvpGame, nil),
	newSubscription(updatePvpGameSubscriptionID, "OnUpdatePvpGameThumbnail", queryUpdatePvpGame, nil),
}

// updatePvpGameSubscriptionID é a única assinatura cujos dados viram eventos
const updatePvpGameSubscriptionID = "eb1b185a-9730-4bcd-baf3-068274845c0a"

func newSubscription(id, operation, query string, vars map[string]any) subscription {
	if vars == nil {
		vars = map[string]any{}
	}
	return subscription{
		ID:   id,
		Type: "subscribe",
		Payload: subscriptionPayload{
			Variables:     vars,
			Extensions:    map[string]any{},
			OperationName: operation,
			Query:         query,
		},
	}
}
