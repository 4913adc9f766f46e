package constants

const (
	ViewLots     = "view_lots"
	ImportLot    = "import_lot"
	ApproveLot   = "approve_lot"
	CloseLot     = "close_lot"
	EditLot      = "edit_lot"
	DeleteLot    = "delete_lot"
	PlaceBid     = "place_bid"
	ViewResults  = "view_results"
	SelectWinner = "select_winner"
)
