package dispatch

func (s *Server) handleGet(req Request) Response {
	v, ok := s.store.Get(req.Key)
	if !ok {
		return Response{Status: StatusOK, Value: nil}
	}
	return Response{Status: StatusOK, Value: &v}
}

func (s *Server) handleSet(req Request) Response {
	ok, redirectTo, err := s.writer.Set(req.Key, req.Value)
	if redirectTo != nil {
		return redirect(redirectTo)
	}
	if err != nil {
		return errResponse(err.Error())
	}
	return okSuccess(ok)
}

func (s *Server) handleDelete(req Request) Response {
	_, ok, redirectTo, err := s.writer.Delete(req.Key)
	if redirectTo != nil {
		return redirect(redirectTo)
	}
	if err != nil {
		return errResponse(err.Error())
	}
	return okSuccess(ok)
}

func (s *Server) handleBulkSet(req Request) Response {
	ok, redirectTo, err := s.writer.BulkSet(req.Items)
	if redirectTo != nil {
		return redirect(redirectTo)
	}
	if err != nil {
		return errResponse(err.Error())
	}
	return okSuccess(ok)
}

func (s *Server) handleFullTextSearch(req Request) Response {
	results := s.store.Index().FullTextSearch(req.Query, topKOrDefault(req.TopK))
	return Response{Status: StatusOK, Results: toScoredHits(results)}
}

func (s *Server) handleSemanticSearch(req Request) Response {
	results := s.store.Index().SemanticSearch(req.Query, topKOrDefault(req.TopK))
	return Response{Status: StatusOK, Results: toScoredHits(results)}
}

func (s *Server) handlePhraseSearch(req Request) Response {
	hits := s.store.Index().PhraseSearch(req.Phrase)
	if hits == nil {
		hits = []string{}
	}
	return Response{Status: StatusOK, Results: hits}
}

func (s *Server) handleSaveIndexes(_ Request) Response {
	if err := s.store.SaveIndexes(); err != nil {
		return errResponse(err.Error())
	}
	return okSuccess(true)
}

func topKOrDefault(k int) int {
	if k <= 0 {
		return 10
	}
	return k
}
