package rpc

import (
	"encoding/json"
	"net/http"

	"swaylend/core/types"
)

type marketContractParams struct {
	Contract string `json:"contract"`
}

type marketAccountParams struct {
	Contract string `json:"contract"`
	Account  string `json:"account"`
	AssetID  string `json:"assetId,omitempty"`
}

type marketAssetParams struct {
	Contract string `json:"contract"`
	AssetID  string `json:"assetId"`
}

type marketValueParams struct {
	Contract string `json:"contract"`
	Value    string `json:"value"`
}

type marketFeedParams struct {
	Contract string `json:"contract"`
	FeedID   string `json:"feedId"`
}

type marketAmountResult struct {
	Amount string `json:"amount"`
}

type marketNonceResult struct {
	Nonce uint64 `json:"nonce"`
}

type marketChainResult struct {
	ChainID uint64 `json:"chainId"`
}

// decodeSingle unmarshals the one object parameter every market method takes.
// A bare string is accepted as the contract id.
func decodeSingle(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single parameter object", nil)
		return false
	}
	var contract string
	if err := json.Unmarshal(req.Params[0], &contract); err == nil {
		if target, ok := dst.(*marketContractParams); ok {
			target.Contract = contract
			return true
		}
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func (s *Server) handleMarketChainID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, marketChainResult{ChainID: s.market.ChainID()})
}

func (s *Server) handleMarketList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	ids, modErr := s.market.List()
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleMarketGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketContractParams
	if !decodeSingle(w, req, &params) {
		return
	}
	result, modErr := s.market.Config(params.Contract)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketGetState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketContractParams
	if !decodeSingle(w, req, &params) {
		return
	}
	result, modErr := s.market.State(params.Contract)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketGetCollaterals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketContractParams
	if !decodeSingle(w, req, &params) {
		return
	}
	result, modErr := s.market.Collaterals(params.Contract)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketGetUserCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAccountParams
	if !decodeSingle(w, req, &params) {
		return
	}
	amount, modErr := s.market.UserCollateral(params.Contract, params.Account, params.AssetID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, marketAmountResult{Amount: amount})
}

func (s *Server) handleMarketGetTotals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAssetParams
	if !decodeSingle(w, req, &params) {
		return
	}
	amount, modErr := s.market.TotalsCollateral(params.Contract, params.AssetID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, marketAmountResult{Amount: amount})
}

func (s *Server) handleMarketCollateralValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAccountParams
	if !decodeSingle(w, req, &params) {
		return
	}
	value, modErr := s.market.CollateralValue(params.Contract, params.Account)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, marketAmountResult{Amount: value})
}

func (s *Server) handleMarketAccountLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAccountParams
	if !decodeSingle(w, req, &params) {
		return
	}
	result, modErr := s.market.AccountLiquidity(params.Contract, params.Account)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketConvertToBase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketValueParams
	if !decodeSingle(w, req, &params) {
		return
	}
	amount, modErr := s.market.ConvertToBase(params.Contract, params.Value)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, marketAmountResult{Amount: amount})
}

func (s *Server) handleMarketGetPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketFeedParams
	if !decodeSingle(w, req, &params) {
		return
	}
	result, modErr := s.market.Price(params.Contract, params.FeedID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAccountParams
	if !decodeSingle(w, req, &params) {
		return
	}
	nonce, modErr := s.market.Nonce(params.Contract, params.Account)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, marketNonceResult{Nonce: nonce})
}

func (s *Server) handleMarketCall(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var call types.MarketCall
	if !decodeSingle(w, req, &call) {
		return
	}
	result, modErr := s.market.Execute(&call)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}
