package ledger

// auctionABIJSON covers the subset of the auction house contract the bot
// touches. auction() returns the current round as a flat tuple.
const auctionABIJSON = `[
  {"inputs":[],"name":"auction","outputs":[
    {"internalType":"uint256","name":"llama_id","type":"uint256"},
    {"internalType":"uint256","name":"amount","type":"uint256"},
    {"internalType":"uint256","name":"start_time","type":"uint256"},
    {"internalType":"uint256","name":"end_time","type":"uint256"},
    {"internalType":"address","name":"bidder","type":"address"},
    {"internalType":"bool","name":"settled","type":"bool"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"arg0","type":"address"}],"name":"pending_returns",
   "outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"uint256","name":"llama_id","type":"uint256"},
    {"internalType":"uint256","name":"bid_amount","type":"uint256"}
  ],"name":"create_bid","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[
    {"internalType":"uint256","name":"llama_id","type":"uint256"},
    {"internalType":"uint256","name":"bid_amount","type":"uint256"},
    {"internalType":"bytes","name":"sig","type":"bytes"}
  ],"name":"create_wl_bid","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[],"name":"settle_current_and_create_new_auction","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const (
	methodAuction        = "auction"
	methodPendingReturns = "pending_returns"
	methodCreateBid      = "create_bid"
	methodCreateWLBid    = "create_wl_bid"
	methodSettle         = "settle_current_and_create_new_auction"
)
